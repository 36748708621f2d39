package offer

import "testing"

func TestExtract_ContextWordPath(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    float64
	}{
		{"dollar sign", "I can offer $700 for it", 700},
		{"dollar sign with comma", "My price is $1,200", 1200},
		{"dollar sign with cents", "Let's say $850.50 and we're done", 850.50},
		{"dollars word", "I'll give you 650 dollars", 650},
		{"context word at", "I can meet you at 725", 725},
		{"context word pay", "I'm willing to pay 680", 680},
		{"context word for", "I'll sell it for 750", 750},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.message)
			if !ok {
				t.Fatalf("Extract(%q) found nothing, want %v", tt.message, tt.want)
			}
			if got != tt.want {
				t.Errorf("Extract(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestExtract_YearFilter(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"model year alone", "This 2018 Honda Civic is in great condition"},
		{"year at boundary low", "A 2000 model, barely driven"},
		{"year at boundary high", "The 2030 edition isn't even out yet"},
		{"no numbers", "Let me think about your proposal"},
		{"empty message", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := Extract(tt.message); ok {
				t.Errorf("Extract(%q) = %v, want no match", tt.message, got)
			}
		})
	}
}

func TestExtract_BareNumberPath(t *testing.T) {
	// No context words, but a plausible standalone price.
	got, ok := Extract("How about 725, final answer")
	if !ok || got != 725 {
		t.Errorf("Extract = %v, %v, want 725, true", got, ok)
	}

	// Year is skipped, the later non-year number wins.
	got, ok = Extract("The 2018 model, I'd go 850")
	if !ok || got != 850 {
		t.Errorf("Extract = %v, %v, want 850, true", got, ok)
	}
}

func TestExtract_FirstRuleWins(t *testing.T) {
	// Contextual rule takes its first occurrence even when later numbers exist.
	got, ok := Extract("I can do $850, or if you prefer, maybe $880")
	if !ok || got != 850 {
		t.Errorf("Extract = %v, %v, want 850, true", got, ok)
	}
}

func TestExtractContextual_IgnoresBareNumbers(t *testing.T) {
	if got, ok := ExtractContextual("How about 725, final answer"); ok {
		t.Errorf("ExtractContextual = %v, want no match for bare number", got)
	}

	got, ok := ExtractContextual("I agree to $715")
	if !ok || got != 715 {
		t.Errorf("ExtractContextual = %v, %v, want 715, true", got, ok)
	}
}
