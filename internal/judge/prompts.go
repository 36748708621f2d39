package judge

import (
	"fmt"
	"strings"

	"github.com/parleysim/parley/internal/negotiation"
)

const verdictSystemPrompt = `You are an expert negotiation adjudicator. Analyze negotiations objectively and return structured verdicts as JSON.`

const refereeSystemPrompt = `You are an expert negotiation referee. Be strict: only confirm agreement when BOTH agents explicitly accept the SAME terms. Return only valid JSON.`

func buildVerdictPrompt(t negotiation.Transcript, consA, consB negotiation.ConstraintSet) string {
	var sb strings.Builder

	sb.WriteString("Adjudicate this completed negotiation.\n\n")

	sb.WriteString("NEGOTIATION TRANSCRIPT:\n---\n")
	sb.WriteString(t.Format())
	sb.WriteString("---\n\n")

	sb.WriteString("PRIVATE CONSTRAINTS (never shown to the other party):\n")
	sb.WriteString("Agent A: " + formatConstraints(consA) + "\n")
	sb.WriteString("Agent B: " + formatConstraints(consB) + "\n\n")

	sb.WriteString(`Respond with valid JSON matching this schema:
{
  "agreement_reached": true|false,
  "agreed_terms": { "price": 712 } or null,
  "winner": "A"|"B"|"Both"|"Neither",
  "rationale": "brief factual explanation",
  "satisfaction_a": "high"|"medium"|"low",
  "satisfaction_b": "high"|"medium"|"low"
}

RULES:
- Only set agreement_reached=true if BOTH agents explicitly agreed to the SAME price.
- Look for explicit acceptance: "I accept", "I agree", "deal", "sold".
- Extract the exact agreed price; set agreed_terms to null when there is no agreement.
- Judge each agent's satisfaction by where the agreed price falls between their limit and their ideal: closer to their ideal means higher satisfaction.
- With no agreement, winner is "Neither" and both satisfactions are "low".
- Keep the rationale factual (e.g. "Both agents accepted $712 in round 7").

Return ONLY the JSON object, no markdown fences or other text.`)

	return sb.String()
}

func formatConstraints(c negotiation.ConstraintSet) string {
	label := "minimum acceptable price"
	if c.Role == negotiation.RoleBuyer {
		label = "maximum budget"
	}
	s := fmt.Sprintf("%s, %s $%.0f, ideal price $%.0f", c.Role, label, c.Bound, c.Ideal)
	if c.Urgency != "" {
		s += ", urgency: " + c.Urgency
	}
	return s
}

func buildQuickPrompt(turnA, turnB negotiation.Turn, round int) string {
	return fmt.Sprintf(`You are a negotiation referee. Analyze this negotiation round and provide:
1. Agreement status (did both agents agree?)
2. Price offers (what price did each agent propose?)

ROUND %d:

Agent A: "%s"

Agent B: "%s"

AGREEMENT RULES:
- Only return agreement_reached=TRUE if BOTH agents explicitly agreed to the SAME price
- Look for: "I agree to $X", "I accept $X", "deal at $X", "sold at $X"
- If one proposes and the other accepts the SAME price -> TRUE
- If still counter-offering different prices -> FALSE
- If discussing logistics after agreement -> still TRUE

PRICE EXTRACTION RULES:
- Extract the ACTUAL price offer each agent is proposing this round
- If multiple prices are mentioned, extract the PRIMARY offer (usually the last/main one)
- Ignore year numbers (like "2018 Honda Civic")
- If an agent just acknowledges/accepts without a NEW offer -> return null

Respond with valid JSON: {"agreement_reached": true|false, "agreed_price": number or null, "agent_a_offer": number or null, "agent_b_offer": number or null, "explanation": "brief"}

Return ONLY the JSON object.`, round, turnA.Message, turnB.Message)
}
