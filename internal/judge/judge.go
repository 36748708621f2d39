// Package judge adjudicates negotiation transcripts. The primary path asks
// the external judging capability for a schema-constrained verdict with
// deterministic sampling; a heuristic fallback takes over whenever the
// structured response is absent or non-conformant. Schema violations are
// recovered locally and never surfaced to the caller.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/parleysim/parley/internal/anthropic"
	"github.com/parleysim/parley/internal/negotiation"
)

const (
	verdictMaxTokens = 1000
	quickMaxTokens   = 150

	// Zero-variance sampling: adjudicating the same transcript twice must
	// yield the same verdict.
	judgeTemperature = 0
)

type Judge struct {
	llm    *anthropic.Client
	logger *slog.Logger
}

func New(llm *anthropic.Client, logger *slog.Logger) *Judge {
	return &Judge{llm: llm, logger: logger}
}

// Adjudicate produces the final verdict for a completed transcript. It never
// returns an error: a failed or malformed structured response selects the
// fallback path instead.
func (j *Judge) Adjudicate(ctx context.Context, t negotiation.Transcript, consA, consB negotiation.ConstraintSet) negotiation.Verdict {
	prompt := buildVerdictPrompt(t, consA, consB)
	messages := []anthropic.Message{{Role: "user", Content: prompt}}

	raw, err := j.llm.Complete(ctx, verdictSystemPrompt, messages, verdictMaxTokens, judgeTemperature)
	if err != nil {
		j.logger.Warn("judging capability unavailable, using fallback", "error", err)
		return fallbackVerdict(t, consA, consB)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		j.logger.Warn("verdict response not schema-conformant, using fallback",
			"error", err,
			"raw_len", len(raw),
		)
		return fallbackVerdict(t, consA, consB)
	}

	j.logger.Info("verdict adjudicated",
		"agreement", verdict.AgreementReached,
		"winner", verdict.Winner,
	)
	return verdict
}

func parseVerdict(raw string) (negotiation.Verdict, error) {
	cleaned := stripFences(raw)
	if err := validateSchema(verdictSchemaLoader, cleaned); err != nil {
		return negotiation.Verdict{}, err
	}

	var v negotiation.Verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return negotiation.Verdict{}, fmt.Errorf("unmarshal verdict: %w", err)
	}

	// Conformant shape but incoherent content still counts as a violation.
	if v.AgreementReached && v.AgreedTerms == nil {
		return negotiation.Verdict{}, fmt.Errorf("agreement reported without agreed terms")
	}
	return v, nil
}

// QuickCheck is the lightweight mid-run referee: agreement status plus the
// round's price offers. Capability failures degrade to a local heuristic so
// a run never aborts on a referee hiccup.
func (j *Judge) QuickCheck(ctx context.Context, turnA, turnB negotiation.Turn, round int) negotiation.QuickResult {
	prompt := buildQuickPrompt(turnA, turnB, round)
	messages := []anthropic.Message{{Role: "user", Content: prompt}}

	raw, err := j.llm.Complete(ctx, refereeSystemPrompt, messages, quickMaxTokens, judgeTemperature)
	if err != nil {
		j.logger.Warn("quick check unavailable, using heuristic", "round", round, "error", err)
		return quickFallback(turnA, turnB)
	}

	cleaned := stripFences(raw)
	if err := validateSchema(quickSchemaLoader, cleaned); err != nil {
		j.logger.Warn("quick check response not schema-conformant, using heuristic",
			"round", round,
			"error", err,
		)
		return quickFallback(turnA, turnB)
	}

	var res negotiation.QuickResult
	if err := json.Unmarshal([]byte(cleaned), &res); err != nil {
		j.logger.Warn("quick check unmarshal failed, using heuristic", "round", round, "error", err)
		return quickFallback(turnA, turnB)
	}
	if res.AgreementReached && res.AgreedPrice == nil {
		j.logger.Warn("quick check reported agreement without a price, using heuristic", "round", round)
		return quickFallback(turnA, turnB)
	}
	return res
}
