// Package agent holds the per-party negotiation state: role, private
// constraints, persona, and the agent's own offer history. Message text comes
// from the external text-generation capability; this package only assembles
// the prompt and tracks what came back.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/parleysim/parley/internal/anthropic"
	"github.com/parleysim/parley/internal/negotiation"
	"github.com/parleysim/parley/internal/offer"
	"github.com/parleysim/parley/internal/persona"
)

const (
	systemPrompt = "You are a negotiation agent. Follow the instructions carefully and generate realistic negotiation messages."

	maxResponseTokens = 200
	// Agents sample with some variance so personalities can emerge; only the
	// adjudicator runs deterministic.
	samplingTemperature = 0.7
)

type Agent struct {
	id          string
	persona     persona.Persona
	publicInfo  string
	constraints negotiation.ConstraintSet
	llm         *anthropic.Client
	history     *negotiation.OfferHistory
	logger      *slog.Logger
}

// New creates an agent. Constraints are fixed for the agent's lifetime.
func New(id string, p persona.Persona, publicInfo string, cs negotiation.ConstraintSet, llm *anthropic.Client, logger *slog.Logger) *Agent {
	return &Agent{
		id:          id,
		persona:     p,
		publicInfo:  publicInfo,
		constraints: cs,
		llm:         llm,
		history:     negotiation.NewOfferHistory(cs.Role),
		logger:      logger,
	}
}

func (a *Agent) ID() string                             { return a.id }
func (a *Agent) PersonaName() string                    { return a.persona.Name }
func (a *Agent) Constraints() negotiation.ConstraintSet { return a.constraints }

// Offers returns the agent's own extracted price offers so far.
func (a *Agent) Offers() []float64 { return a.history.Offers() }

// ConsistencyViolations returns how many of the agent's offers broke the
// monotonic-concession direction.
func (a *Agent) ConsistencyViolations() int { return a.history.Violations() }

// Propose generates the agent's next message given the visible transcript.
// Any price found in the response is recorded in the agent's offer history.
// Failures come back as *negotiation.GenerationError; the caller decides
// whether the run survives based on its Recoverable flag.
func (a *Agent) Propose(ctx context.Context, transcript negotiation.Transcript, round int) (string, error) {
	prompt := BuildPrompt(PromptContext{
		AgentID:     a.id,
		Constraints: a.constraints,
		Persona:     a.persona.Prompt,
		PublicInfo:  a.publicInfo,
		PriorOffers: a.history.Offers(),
		Transcript:  transcript,
		Round:       round,
	})

	text, err := a.llm.Complete(ctx, systemPrompt, []anthropic.Message{{Role: "user", Content: prompt}}, maxResponseTokens, samplingTemperature)
	if err != nil {
		recoverable := false
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			recoverable = apiErr.Recoverable()
		}
		return "", &negotiation.GenerationError{Agent: a.id, Recoverable: recoverable, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &negotiation.GenerationError{Agent: a.id, Recoverable: true, Err: errors.New("empty completion")}
	}

	if price, ok := offer.Extract(text); ok {
		if !a.history.Record(price) {
			a.logger.Warn("offer broke concession direction",
				"agent", a.id,
				"offer", price,
				"round", round,
			)
		}
	}

	return text, nil
}
