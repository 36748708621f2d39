package judge

import (
	"fmt"
	"strings"

	"github.com/parleysim/parley/internal/negotiation"
	"github.com/parleysim/parley/internal/offer"
)

// Fallback constants. The tail window and price sanity bounds match the
// heuristic the judging prompt itself describes; the satisfaction ratios are
// fallback defaults only; the primary path leaves tier thresholds to the
// judging capability.
const (
	fallbackTailTurns = 6

	minPlausiblePrice = 100
	maxPlausiblePrice = 10000

	highTierRatio   = 0.10
	mediumTierRatio = 0.50
)

var acceptancePhrases = []string{"deal", "accept", "agree", "sold", "take it", "finalize"}

func containsAcceptance(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range acceptancePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// fallbackVerdict adjudicates heuristically: scan the transcript tail,
// newest first, for acceptance language paired with a contextual price.
// Only the contextual extraction rule is used so an item-descriptor number
// can never become the agreed terms.
func fallbackVerdict(t negotiation.Transcript, consA, consB negotiation.ConstraintSet) negotiation.Verdict {
	tail := t.Tail(fallbackTailTurns)
	for i := len(tail) - 1; i >= 0; i-- {
		turn := tail[i]
		if !containsAcceptance(turn.Message) {
			continue
		}
		price, ok := offer.ExtractContextual(turn.Message)
		if !ok || price < minPlausiblePrice || price > maxPlausiblePrice {
			continue
		}

		satA := SatisfactionTier(price, consA)
		satB := SatisfactionTier(price, consB)
		return negotiation.Verdict{
			AgreementReached: true,
			AgreedTerms:      &negotiation.AgreedTerms{Price: price},
			Winner:           deriveWinner(satA, satB),
			Rationale:        fmt.Sprintf("Acceptance language with price $%.0f found in round %d (heuristic adjudication).", price, turn.Round),
			SatisfactionA:    satA,
			SatisfactionB:    satB,
		}
	}

	return negotiation.Verdict{
		AgreementReached: false,
		Winner:           negotiation.WinnerNeither,
		Rationale:        "No explicit acceptance with a price was found in the transcript.",
		SatisfactionA:    negotiation.SatisfactionLow,
		SatisfactionB:    negotiation.SatisfactionLow,
	}
}

// quickFallback is the referee's local stand-in when the judging capability
// is unavailable mid-run: acceptance language plus a contextual price in the
// round, or both agents landing on the same extracted offer.
func quickFallback(turnA, turnB negotiation.Turn) negotiation.QuickResult {
	res := negotiation.QuickResult{
		OfferA:      turnA.Offer,
		OfferB:      turnB.Offer,
		Explanation: "heuristic check: no explicit mutual acceptance found",
	}

	for _, turn := range []negotiation.Turn{turnB, turnA} {
		if !containsAcceptance(turn.Message) {
			continue
		}
		if price, ok := offer.ExtractContextual(turn.Message); ok && price >= minPlausiblePrice && price <= maxPlausiblePrice {
			res.AgreementReached = true
			res.AgreedPrice = &price
			res.Explanation = fmt.Sprintf("heuristic check: acceptance of $%.0f", price)
			return res
		}
	}

	if turnA.Offer != nil && turnB.Offer != nil && *turnA.Offer == *turnB.Offer {
		price := *turnA.Offer
		res.AgreementReached = true
		res.AgreedPrice = &price
		res.Explanation = fmt.Sprintf("heuristic check: both agents converged on $%.0f", price)
	}
	return res
}

// ratioFromIdeal measures how far the price sits from the agent's ideal,
// normalized by the bound-to-ideal span. 0 means at the ideal, 1 means at
// the bound; negative values mean better than ideal.
func ratioFromIdeal(price float64, c negotiation.ConstraintSet) float64 {
	span := c.Ideal - c.Bound
	if span == 0 {
		betterOrEqual := (c.Role.Maximizer() && price >= c.Ideal) || (!c.Role.Maximizer() && price <= c.Ideal)
		if betterOrEqual {
			return 0
		}
		return 1
	}
	return (c.Ideal - price) / span
}

// SatisfactionTier maps an agreed price onto the agent's satisfaction tier
// using the fixed fallback ratios: within 10% of the span from ideal is high,
// within 50% is medium, anything further (including at or past the bound)
// is low.
func SatisfactionTier(price float64, c negotiation.ConstraintSet) negotiation.Satisfaction {
	r := ratioFromIdeal(price, c)
	switch {
	case r <= highTierRatio:
		return negotiation.SatisfactionHigh
	case r <= mediumTierRatio:
		return negotiation.SatisfactionMedium
	default:
		return negotiation.SatisfactionLow
	}
}

// Utility scores an agreed price on [0,1] against the agent's envelope: 1 at
// or beyond the ideal, 0 at or beyond the bound, linear in between.
func Utility(price float64, c negotiation.ConstraintSet) float64 {
	u := 1 - ratioFromIdeal(price, c)
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}

var tierRank = map[negotiation.Satisfaction]int{
	negotiation.SatisfactionLow:    0,
	negotiation.SatisfactionMedium: 1,
	negotiation.SatisfactionHigh:   2,
}

func deriveWinner(satA, satB negotiation.Satisfaction) negotiation.Winner {
	switch {
	case tierRank[satA] > tierRank[satB]:
		return negotiation.WinnerA
	case tierRank[satB] > tierRank[satA]:
		return negotiation.WinnerB
	default:
		return negotiation.WinnerBoth
	}
}
