// Package runner wires the negotiation pipeline together: scenario lookup,
// agent construction, engine execution, persistence, and outcome events.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/parleysim/parley/internal/agent"
	"github.com/parleysim/parley/internal/anthropic"
	"github.com/parleysim/parley/internal/bus"
	"github.com/parleysim/parley/internal/engine"
	"github.com/parleysim/parley/internal/judge"
	"github.com/parleysim/parley/internal/negotiation"
	"github.com/parleysim/parley/internal/persona"
	"github.com/parleysim/parley/internal/scenario"
	"github.com/parleysim/parley/internal/store"
)

// Publisher is the outbound event surface. *bus.Client satisfies it; tests
// substitute a capture double.
type Publisher interface {
	Publish(subject string, data any) error
}

type Runner struct {
	scenarios map[string]*scenario.Scenario
	llm       *anthropic.Client
	judge     *judge.Judge
	store     *store.Store // nil disables persistence
	pub       Publisher    // nil disables outcome events
	maxRounds int
	logger    *slog.Logger
}

func New(scenarios map[string]*scenario.Scenario, llm *anthropic.Client, jdg *judge.Judge, st *store.Store, pub Publisher, maxRounds int, logger *slog.Logger) *Runner {
	return &Runner{
		scenarios: scenarios,
		llm:       llm,
		judge:     jdg,
		store:     st,
		pub:       pub,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// Scenarios returns the names of all loaded scenarios.
func (r *Runner) Scenarios() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	return names
}

// Run executes one negotiation for the request and returns the result. The
// result is persisted and announced as a side effect; a failed run is still
// persisted with its partial transcript before the error is returned.
func (r *Runner) Run(ctx context.Context, req bus.RunRequest) (engine.Result, error) {
	sc, ok := r.scenarios[req.Scenario]
	if !ok {
		return engine.Result{}, fmt.Errorf("unknown scenario %q", req.Scenario)
	}

	personaA, err := resolvePersona(req.PersonaA)
	if err != nil {
		return engine.Result{}, fmt.Errorf("agent A: %w", err)
	}
	personaB, err := resolvePersona(req.PersonaB)
	if err != nil {
		return engine.Result{}, fmt.Errorf("agent B: %w", err)
	}

	consA, err := sc.AgentA.Constraints()
	if err != nil {
		return engine.Result{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	consB, err := sc.AgentB.Constraints()
	if err != nil {
		return engine.Result{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	publicInfo := sc.PublicInfoText()
	agentA := agent.New("Agent A", personaA, publicInfo, consA, r.llm, r.logger)
	agentB := agent.New("Agent B", personaB, publicInfo, consB, r.llm, r.logger)

	maxRounds := r.maxRounds
	if req.MaxRounds > 0 {
		maxRounds = req.MaxRounds
	}
	if sc.MaxRounds > 0 && req.MaxRounds == 0 {
		maxRounds = sc.MaxRounds
	}

	eng := engine.New(agentA, agentB, r.judge, maxRounds, r.logger)
	res, runErr := eng.Run(ctx)

	r.persist(ctx, sc.Name, personaA.Name, personaB.Name, consA, consB, res)
	r.announce(sc.Name, res, runErr)

	return res, runErr
}

// HandleRunRequested is the NATS handler for parley.negotiation.requested.
func (r *Runner) HandleRunRequested(subject string, data []byte) {
	ctx := context.Background()

	var req bus.RunRequest
	if err := json.Unmarshal(data, &req); err != nil {
		r.logger.Error("failed to parse run request", "error", err)
		return
	}

	r.logger.Info("run requested",
		"scenario", req.Scenario,
		"persona_a", req.PersonaA,
		"persona_b", req.PersonaB,
	)

	if _, err := r.Run(ctx, req); err != nil {
		r.logger.Error("run failed", "scenario", req.Scenario, "error", err)
	}
}

func (r *Runner) persist(ctx context.Context, scenarioName, personaA, personaB string, consA, consB negotiation.ConstraintSet, res engine.Result) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(ctx, scenarioName, personaA, personaB, res); err != nil {
		r.logger.Error("failed to persist run", "run_id", res.ID, "error", err)
		return
	}

	if res.State == engine.StateFailed {
		return
	}
	agreed := res.Verdict.AgreementReached && res.Verdict.AgreedTerms != nil
	var utilA, utilB float64
	if agreed {
		price := res.Verdict.AgreedTerms.Price
		utilA = judge.Utility(price, consA)
		utilB = judge.Utility(price, consB)
	}
	if err := r.store.RecordOutcome(ctx, personaA, string(consA.Role), agreed, utilA); err != nil {
		r.logger.Error("failed to record stats", "persona", personaA, "error", err)
	}
	if err := r.store.RecordOutcome(ctx, personaB, string(consB.Role), agreed, utilB); err != nil {
		r.logger.Error("failed to record stats", "persona", personaB, "error", err)
	}
}

func (r *Runner) announce(scenarioName string, res engine.Result, runErr error) {
	if r.pub == nil {
		return
	}

	if runErr != nil {
		event := bus.RunFailed{
			RunID:    res.ID.String(),
			Scenario: scenarioName,
			Round:    res.Rounds + 1,
			Error:    runErr.Error(),
		}
		if err := r.pub.Publish(bus.SubjectRunFailed, event); err != nil {
			r.logger.Error("failed to publish run failed", "run_id", res.ID, "error", err)
		}
		return
	}

	event := bus.RunCompleted{
		RunID:            res.ID.String(),
		Scenario:         scenarioName,
		State:            string(res.State),
		Rounds:           res.Rounds,
		AgreementReached: res.Verdict.AgreementReached,
		Winner:           string(res.Verdict.Winner),
	}
	if res.Verdict.AgreedTerms != nil {
		price := res.Verdict.AgreedTerms.Price
		event.AgreedPrice = &price
	}
	if err := r.pub.Publish(bus.SubjectRunCompleted, event); err != nil {
		r.logger.Error("failed to publish run completed", "run_id", res.ID, "error", err)
	}
}

func resolvePersona(name string) (persona.Persona, error) {
	if name == "" {
		name = "None"
	}
	p, ok := persona.Get(name)
	if !ok {
		return persona.Persona{}, fmt.Errorf("unknown persona %q", name)
	}
	return p, nil
}
