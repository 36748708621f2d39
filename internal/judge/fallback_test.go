package judge

import (
	"math"
	"testing"

	"github.com/parleysim/parley/internal/negotiation"
)

func sellerCons() negotiation.ConstraintSet {
	return negotiation.ConstraintSet{Role: negotiation.RoleSeller, Bound: 600, Ideal: 750}
}

func buyerCons() negotiation.ConstraintSet {
	return negotiation.ConstraintSet{Role: negotiation.RoleBuyer, Bound: 800, Ideal: 650}
}

func TestSatisfactionTier(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		cons  negotiation.ConstraintSet
		want  negotiation.Satisfaction
	}{
		{"seller at ideal", 750, sellerCons(), negotiation.SatisfactionHigh},
		{"seller beyond ideal", 780, sellerCons(), negotiation.SatisfactionHigh},
		{"seller within 10% of span", 740, sellerCons(), negotiation.SatisfactionHigh},
		{"seller mid-range", 715, sellerCons(), negotiation.SatisfactionMedium},
		{"seller at half span", 675, sellerCons(), negotiation.SatisfactionMedium},
		{"seller near bound", 620, sellerCons(), negotiation.SatisfactionLow},
		{"seller exactly at bound", 600, sellerCons(), negotiation.SatisfactionLow},
		{"buyer at ideal", 650, buyerCons(), negotiation.SatisfactionHigh},
		{"buyer below ideal", 620, buyerCons(), negotiation.SatisfactionHigh},
		{"buyer mid-range", 715, buyerCons(), negotiation.SatisfactionMedium},
		{"buyer exactly at budget", 800, buyerCons(), negotiation.SatisfactionLow},
		{"buyer over budget", 850, buyerCons(), negotiation.SatisfactionLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SatisfactionTier(tt.price, tt.cons)
			if got != tt.want {
				t.Errorf("SatisfactionTier(%v) = %s, want %s", tt.price, got, tt.want)
			}
		})
	}
}

func TestUtility(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		cons  negotiation.ConstraintSet
		want  float64
	}{
		{"seller at ideal", 750, sellerCons(), 1.0},
		{"seller beyond ideal", 800, sellerCons(), 1.0},
		{"seller at bound", 600, sellerCons(), 0.0},
		{"seller below bound", 500, sellerCons(), 0.0},
		{"seller midpoint", 675, sellerCons(), 0.5},
		{"buyer at ideal", 650, buyerCons(), 1.0},
		{"buyer at budget", 800, buyerCons(), 0.0},
		{"buyer midpoint", 725, buyerCons(), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Utility(tt.price, tt.cons)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Utility(%v) = %f, want %f", tt.price, got, tt.want)
			}
		})
	}
}

func TestFallbackVerdict_AcceptanceWithPrice(t *testing.T) {
	transcript := negotiation.Transcript{
		{Round: 1, Speaker: "Agent A", Message: "Asking $750 for my road bike."},
		{Round: 1, Speaker: "Agent B", Message: "That's steep. I could pay 680."},
		{Round: 2, Speaker: "Agent A", Message: "Meet me in the middle at $715?"},
		{Round: 2, Speaker: "Agent B", Message: "I agree to $715"},
	}

	v := fallbackVerdict(transcript, sellerCons(), buyerCons())
	if !v.AgreementReached {
		t.Fatal("expected agreement")
	}
	if v.AgreedTerms == nil || v.AgreedTerms.Price != 715 {
		t.Fatalf("expected agreed price 715, got %+v", v.AgreedTerms)
	}
	// 715 sits mid-range for both envelopes.
	if v.SatisfactionA != negotiation.SatisfactionMedium {
		t.Errorf("expected satisfaction_a medium, got %s", v.SatisfactionA)
	}
	if v.SatisfactionB != negotiation.SatisfactionMedium {
		t.Errorf("expected satisfaction_b medium, got %s", v.SatisfactionB)
	}
	if v.Winner != negotiation.WinnerBoth {
		t.Errorf("expected winner Both, got %s", v.Winner)
	}
}

func TestFallbackVerdict_NeverUsesBareNumbers(t *testing.T) {
	// "Deal" plus a bare year-free number: without a contextual marker the
	// number must not become the agreed terms.
	transcript := negotiation.Transcript{
		{Round: 1, Speaker: "Agent A", Message: "It's a 2018 Honda Civic."},
		{Round: 1, Speaker: "Agent B", Message: "Deal on the 2018 then."},
	}

	v := fallbackVerdict(transcript, sellerCons(), buyerCons())
	if v.AgreementReached {
		t.Errorf("expected no agreement, got terms %+v", v.AgreedTerms)
	}
	if v.Winner != negotiation.WinnerNeither {
		t.Errorf("expected winner Neither, got %s", v.Winner)
	}
}

func TestFallbackVerdict_NoAcceptance(t *testing.T) {
	transcript := negotiation.Transcript{
		{Round: 1, Speaker: "Agent A", Message: "Asking $900."},
		{Round: 1, Speaker: "Agent B", Message: "Way too much. $500 at best."},
	}

	v := fallbackVerdict(transcript, sellerCons(), buyerCons())
	if v.AgreementReached {
		t.Error("expected no agreement")
	}
	if v.Winner != negotiation.WinnerNeither {
		t.Errorf("expected winner Neither, got %s", v.Winner)
	}
	if v.SatisfactionA != negotiation.SatisfactionLow || v.SatisfactionB != negotiation.SatisfactionLow {
		t.Errorf("expected low/low satisfaction, got %s/%s", v.SatisfactionA, v.SatisfactionB)
	}
}

func TestFallbackVerdict_ImplausiblePriceRejected(t *testing.T) {
	transcript := negotiation.Transcript{
		{Round: 1, Speaker: "Agent B", Message: "I accept your offer of $35"},
	}

	v := fallbackVerdict(transcript, sellerCons(), buyerCons())
	if v.AgreementReached {
		t.Error("price below plausibility floor should not produce agreement")
	}
}

func TestDeriveWinner(t *testing.T) {
	tests := []struct {
		name string
		satA negotiation.Satisfaction
		satB negotiation.Satisfaction
		want negotiation.Winner
	}{
		{"a ahead", negotiation.SatisfactionHigh, negotiation.SatisfactionMedium, negotiation.WinnerA},
		{"b ahead", negotiation.SatisfactionLow, negotiation.SatisfactionMedium, negotiation.WinnerB},
		{"tied medium", negotiation.SatisfactionMedium, negotiation.SatisfactionMedium, negotiation.WinnerBoth},
		{"tied high", negotiation.SatisfactionHigh, negotiation.SatisfactionHigh, negotiation.WinnerBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveWinner(tt.satA, tt.satB); got != tt.want {
				t.Errorf("deriveWinner(%s, %s) = %s, want %s", tt.satA, tt.satB, got, tt.want)
			}
		})
	}
}

func TestQuickFallback_Convergence(t *testing.T) {
	pa, pb := 715.0, 715.0
	turnA := negotiation.Turn{Round: 3, Speaker: "Agent A", Message: "Let's land on $715.", Offer: &pa}
	turnB := negotiation.Turn{Round: 3, Speaker: "Agent B", Message: "Fine, $715 works for me.", Offer: &pb}

	res := quickFallback(turnA, turnB)
	if !res.AgreementReached {
		t.Fatal("expected convergence to count as agreement")
	}
	if res.AgreedPrice == nil || *res.AgreedPrice != 715 {
		t.Errorf("expected agreed price 715, got %v", res.AgreedPrice)
	}
}

func TestQuickFallback_NoAgreement(t *testing.T) {
	pa, pb := 750.0, 680.0
	turnA := negotiation.Turn{Round: 1, Speaker: "Agent A", Message: "Asking $750.", Offer: &pa}
	turnB := negotiation.Turn{Round: 1, Speaker: "Agent B", Message: "I'd pay $680.", Offer: &pb}

	res := quickFallback(turnA, turnB)
	if res.AgreementReached {
		t.Error("counter-offers must not count as agreement")
	}
	if res.OfferA == nil || *res.OfferA != 750 || res.OfferB == nil || *res.OfferB != 680 {
		t.Errorf("expected offers passed through, got %v / %v", res.OfferA, res.OfferB)
	}
}
