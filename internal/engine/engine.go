// Package engine drives a negotiation run: alternating turns between two
// agents, an append-only transcript, a quick agreement check after each
// round, and final adjudication once the run terminates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/parleysim/parley/internal/negotiation"
	"github.com/parleysim/parley/internal/offer"
)

// DefaultMaxRounds bounds a run when the caller does not configure one.
const DefaultMaxRounds = 10

// State is the run's lifecycle position. Agreed, Exhausted, and Failed are
// terminal.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateAgreed     State = "agreed"
	StateExhausted  State = "exhausted"
	StateFailed     State = "failed"
)

// Proposer is one side of the table. The production implementation wraps the
// external text-generation capability; tests substitute scripted doubles.
type Proposer interface {
	ID() string
	PersonaName() string
	Constraints() negotiation.ConstraintSet
	ConsistencyViolations() int
	Propose(ctx context.Context, transcript negotiation.Transcript, round int) (string, error)
}

// Adjudicator issues the mid-run quick checks and the final verdict. Passed
// in at construction so tests can substitute a double.
type Adjudicator interface {
	QuickCheck(ctx context.Context, turnA, turnB negotiation.Turn, round int) negotiation.QuickResult
	Adjudicate(ctx context.Context, t negotiation.Transcript, consA, consB negotiation.ConstraintSet) negotiation.Verdict
}

// Result is everything a completed (or failed) run produced.
type Result struct {
	ID         uuid.UUID               `json:"id"`
	State      State                   `json:"state"`
	Rounds     int                     `json:"rounds"`
	Transcript negotiation.Transcript  `json:"transcript"`
	Verdict    negotiation.Verdict     `json:"verdict"`
	// Per-agent counts of offers that broke the concession direction.
	ViolationsA int `json:"violations_a"`
	ViolationsB int `json:"violations_b"`
}

type Engine struct {
	agentA      Proposer
	agentB      Proposer
	adjudicator Adjudicator
	maxRounds   int
	logger      *slog.Logger

	state      State
	transcript negotiation.Transcript
}

// New builds an engine for a single run. An engine is not reusable: Run may
// be called once.
func New(agentA, agentB Proposer, adj Adjudicator, maxRounds int, logger *slog.Logger) *Engine {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Engine{
		agentA:      agentA,
		agentB:      agentB,
		adjudicator: adj,
		maxRounds:   maxRounds,
		logger:      logger,
		state:       StateNotStarted,
	}
}

// State returns the run's current lifecycle position.
func (e *Engine) State() State { return e.state }

// Run executes the negotiation to a terminal state. A round is one message
// from each agent in fixed order, agent A first. After both have spoken the
// quick check decides whether to halt on agreement; hitting the round bound
// without agreement exhausts the run. Only a non-recoverable generation
// failure returns an error, with the partial transcript in the result.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if e.state != StateNotStarted {
		return Result{}, fmt.Errorf("run already started (state %s)", e.state)
	}
	runID := uuid.New()
	e.state = StateInProgress
	e.logger.Info("negotiation started",
		"run_id", runID,
		"agent_a", e.agentA.ID(),
		"agent_b", e.agentB.ID(),
		"max_rounds", e.maxRounds,
	)

	rounds := 0
	for round := 1; round <= e.maxRounds; round++ {
		turnA, err := e.takeTurn(ctx, e.agentA, round)
		if err != nil {
			return e.fail(runID, round, err)
		}
		turnB, err := e.takeTurn(ctx, e.agentB, round)
		if err != nil {
			return e.fail(runID, round, err)
		}
		rounds = round

		quick := e.adjudicator.QuickCheck(ctx, turnA, turnB, round)
		if quick.AgreementReached {
			e.state = StateAgreed
			e.logger.Info("agreement detected",
				"run_id", runID,
				"round", round,
				"explanation", quick.Explanation,
			)
			break
		}
	}
	if e.state == StateInProgress {
		e.state = StateExhausted
		e.logger.Info("round limit reached without agreement", "run_id", runID, "rounds", rounds)
	}

	verdict := e.adjudicator.Adjudicate(ctx, e.transcript, e.agentA.Constraints(), e.agentB.Constraints())
	return Result{
		ID:          runID,
		State:       e.state,
		Rounds:      rounds,
		Transcript:  e.transcript,
		Verdict:     verdict,
		ViolationsA: e.agentA.ConsistencyViolations(),
		ViolationsB: e.agentB.ConsistencyViolations(),
	}, nil
}

// takeTurn asks one agent for its message and appends the turn. A recoverable
// generation failure records an unparseable turn with no offer and the run
// continues; a non-recoverable one propagates and fails the run.
func (e *Engine) takeTurn(ctx context.Context, p Proposer, round int) (negotiation.Turn, error) {
	text, err := p.Propose(ctx, e.transcript, round)
	if err != nil {
		var genErr *negotiation.GenerationError
		if !errors.As(err, &genErr) || !genErr.Recoverable {
			return negotiation.Turn{}, err
		}
		e.logger.Warn("turn generation failed, recording empty turn",
			"agent", p.ID(),
			"round", round,
			"error", err,
		)
		text = ""
	}

	turn := negotiation.Turn{
		ID:      uuid.New(),
		Round:   round,
		Speaker: p.ID(),
		Persona: p.PersonaName(),
		Message: text,
	}
	if price, ok := offer.Extract(text); ok {
		turn.Offer = &price
	}
	e.transcript = append(e.transcript, turn)
	return turn, nil
}

func (e *Engine) fail(runID uuid.UUID, round int, err error) (Result, error) {
	e.state = StateFailed
	e.logger.Error("negotiation failed",
		"run_id", runID,
		"round", round,
		"error", err,
	)
	return Result{
		ID:          runID,
		State:       StateFailed,
		Rounds:      round - 1,
		Transcript:  e.transcript,
		ViolationsA: e.agentA.ConsistencyViolations(),
		ViolationsB: e.agentB.ConsistencyViolations(),
	}, fmt.Errorf("round %d: %w", round, err)
}
