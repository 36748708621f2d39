package negotiation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role identifies which side of the deal an agent sits on. A seller is a
// maximizer that concedes downward, a buyer is a minimizer that concedes
// upward.
type Role string

const (
	RoleSeller Role = "Seller"
	RoleBuyer  Role = "Buyer"
)

// Maximizer reports whether the role wants the agreed price as high as possible.
func (r Role) Maximizer() bool {
	return r == RoleSeller
}

// ConstraintSet is one agent's private negotiation envelope. Immutable once a
// run starts.
type ConstraintSet struct {
	Role  Role    `json:"role"`
	Bound float64 `json:"bound"` // minimum acceptable (seller) or maximum budget (buyer)
	Ideal float64 `json:"ideal"`
	// Urgency is an optional free-form tag ("need to sell this week") fed
	// into the prompt context, never interpreted by the engine.
	Urgency string `json:"urgency,omitempty"`
}

// Turn is one message in a negotiation. Offer is nil when no price could be
// extracted from the message.
type Turn struct {
	ID      uuid.UUID `json:"id"`
	Round   int       `json:"round"`
	Speaker string    `json:"speaker"`
	Persona string    `json:"persona,omitempty"`
	Message string    `json:"message"`
	Offer   *float64  `json:"offer,omitempty"`
}

// Transcript is the ordered record of a run. Append-only while the run is in
// progress; handed to consumers by value once it ends.
type Transcript []Turn

// Tail returns the last n turns (or the whole transcript if shorter).
func (t Transcript) Tail(n int) Transcript {
	if len(t) <= n {
		return t
	}
	return t[len(t)-n:]
}

// Format renders the transcript as prompt-ready text, one block per turn.
func (t Transcript) Format() string {
	var sb strings.Builder
	for _, turn := range t {
		if turn.Persona != "" && turn.Persona != "None" {
			fmt.Fprintf(&sb, "[Round %d] %s (%s):\n", turn.Round, turn.Speaker, turn.Persona)
		} else {
			fmt.Fprintf(&sb, "[Round %d] %s:\n", turn.Round, turn.Speaker)
		}
		sb.WriteString("  " + turn.Message + "\n\n")
	}
	return sb.String()
}

// OfferHistory tracks one agent's own extracted price offers in order. The
// monotonic-concession rule (sellers non-increasing, buyers non-decreasing)
// is advisory: violations are counted, never rejected, because the text
// generator cannot be forced to comply.
type OfferHistory struct {
	role       Role
	offers     []float64
	violations int
}

func NewOfferHistory(role Role) *OfferHistory {
	return &OfferHistory{role: role}
}

// Record appends an offer and reports whether it respected the concession
// direction. The first offer is always consistent.
func (h *OfferHistory) Record(offer float64) bool {
	consistent := true
	if n := len(h.offers); n > 0 {
		prev := h.offers[n-1]
		if h.role.Maximizer() && offer > prev {
			consistent = false
		}
		if !h.role.Maximizer() && offer < prev {
			consistent = false
		}
	}
	if !consistent {
		h.violations++
	}
	h.offers = append(h.offers, offer)
	return consistent
}

// Offers returns a copy of the recorded offers.
func (h *OfferHistory) Offers() []float64 {
	out := make([]float64, len(h.offers))
	copy(out, h.offers)
	return out
}

// Violations returns how many recorded offers broke the concession direction.
func (h *OfferHistory) Violations() int {
	return h.violations
}

// Satisfaction is the tier an agent lands in relative to its own envelope.
type Satisfaction string

const (
	SatisfactionHigh   Satisfaction = "high"
	SatisfactionMedium Satisfaction = "medium"
	SatisfactionLow    Satisfaction = "low"
)

// Winner identifies who came out ahead.
type Winner string

const (
	WinnerA       Winner = "A"
	WinnerB       Winner = "B"
	WinnerBoth    Winner = "Both"
	WinnerNeither Winner = "Neither"
)

// AgreedTerms carries the numbers both sides settled on.
type AgreedTerms struct {
	Price float64 `json:"price"`
}

// Verdict is the final adjudication of a completed run. Produced exactly once,
// immutable afterwards.
type Verdict struct {
	AgreementReached bool         `json:"agreement_reached"`
	AgreedTerms      *AgreedTerms `json:"agreed_terms"`
	Winner           Winner       `json:"winner"`
	Rationale        string       `json:"rationale"`
	SatisfactionA    Satisfaction `json:"satisfaction_a"`
	SatisfactionB    Satisfaction `json:"satisfaction_b"`
}

// QuickResult is the lightweight mid-run agreement check: agreement status
// plus whatever price offers the referee spotted in the round.
type QuickResult struct {
	AgreementReached bool     `json:"agreement_reached"`
	AgreedPrice      *float64 `json:"agreed_price"`
	OfferA           *float64 `json:"agent_a_offer"`
	OfferB           *float64 `json:"agent_b_offer"`
	Explanation      string   `json:"explanation"`
}
