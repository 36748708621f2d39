package agent

import (
	"fmt"
	"strings"

	"github.com/parleysim/parley/internal/negotiation"
)

// PromptContext enumerates everything that may appear in a generation prompt.
// Keeping it a plain struct makes the prompt contract testable without a
// text-generation capability behind it.
type PromptContext struct {
	AgentID     string
	Constraints negotiation.ConstraintSet
	Persona     string // persona prompt modifier, may be empty
	PublicInfo  string // scenario information visible to both parties
	PriorOffers []float64
	Transcript  negotiation.Transcript
	Round       int
}

const divider = "============================================================"

// BuildPrompt renders the prompt context into the text sent to the generator.
// Prior offers are included as a consistency hint, not a hard rule.
func BuildPrompt(pc PromptContext) string {
	var sb strings.Builder

	sb.WriteString(divider + "\n")
	fmt.Fprintf(&sb, "YOUR ROLE: %s\n", strings.ToUpper(string(pc.Constraints.Role)))
	sb.WriteString(divider + "\n")
	switch pc.Constraints.Role {
	case negotiation.RoleSeller:
		sb.WriteString("You are selling the item described below.\n")
		sb.WriteString("Your goal: Sell for the HIGHEST price possible within your acceptable range.\n")
	case negotiation.RoleBuyer:
		sb.WriteString("You are buying the item described below.\n")
		sb.WriteString("Your goal: Buy for the LOWEST price possible within your acceptable range.\n")
	default:
		fmt.Fprintf(&sb, "You are the %s.\n", pc.Constraints.Role)
	}
	sb.WriteString("\n")

	if pc.Persona != "" {
		sb.WriteString(pc.Persona + "\n\n")
	}

	if pc.PublicInfo != "" {
		sb.WriteString(divider + "\n")
		sb.WriteString("NEGOTIATION CONTEXT:\n")
		sb.WriteString(divider + "\n")
		sb.WriteString(pc.PublicInfo + "\n\n")
	}

	sb.WriteString(divider + "\n")
	sb.WriteString("YOUR CONSTRAINTS:\n")
	sb.WriteString(divider + "\n")
	if pc.Constraints.Role == negotiation.RoleSeller {
		fmt.Fprintf(&sb, "Minimum acceptable price: $%.0f\n", pc.Constraints.Bound)
	} else {
		fmt.Fprintf(&sb, "Maximum budget: $%.0f\n", pc.Constraints.Bound)
	}
	fmt.Fprintf(&sb, "Ideal price: $%.0f\n", pc.Constraints.Ideal)
	if pc.Constraints.Urgency != "" {
		fmt.Fprintf(&sb, "Urgency: %s\n", pc.Constraints.Urgency)
	}
	sb.WriteString("Note: Use this information strategically. You may choose whether to reveal it.\n\n")

	if len(pc.PriorOffers) > 0 {
		offers := make([]string, len(pc.PriorOffers))
		for i, o := range pc.PriorOffers {
			offers[i] = fmt.Sprintf("$%.0f", o)
		}
		fmt.Fprintf(&sb, "Your previous price offers, in order: %s\n", strings.Join(offers, ", "))
		sb.WriteString("Stay consistent with the direction of your previous offers.\n\n")
	}

	if len(pc.Transcript) > 0 {
		sb.WriteString(divider + "\n")
		fmt.Fprintf(&sb, "CONVERSATION HISTORY (Round %d):\n", pc.Round)
		sb.WriteString(divider + "\n")
		sb.WriteString(pc.Transcript.Format())
	}

	sb.WriteString(divider + "\n")
	sb.WriteString("YOUR TASK:\n")
	sb.WriteString(divider + "\n")
	if len(pc.Transcript) > 0 {
		sb.WriteString("Read the conversation above and respond to the other party's latest message.\n")
		sb.WriteString("Continue negotiating toward an agreement that maximizes your outcome.\n")
	} else {
		sb.WriteString("Begin the negotiation. Make your opening statement.\n")
	}
	sb.WriteString("\nYour response (do not include labels like 'Agent A:' or 'Seller:'):")

	return sb.String()
}
