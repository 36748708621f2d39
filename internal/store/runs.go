package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parleysim/parley/internal/engine"
	"github.com/parleysim/parley/internal/negotiation"
)

// RunRecord is a persisted negotiation run read back from the database.
type RunRecord struct {
	ID          uuid.UUID               `json:"id"`
	Scenario    string                  `json:"scenario"`
	PersonaA    string                  `json:"persona_a"`
	PersonaB    string                  `json:"persona_b"`
	State       string                  `json:"state"`
	Rounds      int                     `json:"rounds"`
	ViolationsA int                     `json:"violations_a"`
	ViolationsB int                     `json:"violations_b"`
	CreatedAt   time.Time               `json:"created_at"`
	Transcript  negotiation.Transcript  `json:"transcript"`
	Verdict     *negotiation.Verdict    `json:"verdict,omitempty"`
}

// RunSummary is the listing view of a run, without transcript or rationale.
type RunSummary struct {
	ID               uuid.UUID `json:"id"`
	Scenario         string    `json:"scenario"`
	PersonaA         string    `json:"persona_a"`
	PersonaB         string    `json:"persona_b"`
	State            string    `json:"state"`
	Rounds           int       `json:"rounds"`
	AgreementReached *bool     `json:"agreement_reached,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// SaveRun writes a completed run across the run tables in one transaction.
// Tables: negotiations, negotiation_turns, negotiation_verdicts. Failed runs
// carry no verdict row.
func (s *Store) SaveRun(ctx context.Context, scenario, personaA, personaB string, res engine.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO negotiations (id, scenario, persona_a, persona_b, state, rounds, violations_a, violations_b, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		res.ID, scenario, personaA, personaB, string(res.State), res.Rounds, res.ViolationsA, res.ViolationsB,
	)
	if err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}

	for i, turn := range res.Transcript {
		_, err = tx.Exec(ctx, `
			INSERT INTO negotiation_turns (id, negotiation_id, position, round, speaker, persona, message, offer)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			turn.ID, res.ID, i, turn.Round, turn.Speaker, turn.Persona, turn.Message, turn.Offer,
		)
		if err != nil {
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}

	if res.State != engine.StateFailed {
		var agreedPrice *float64
		if res.Verdict.AgreedTerms != nil {
			agreedPrice = &res.Verdict.AgreedTerms.Price
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO negotiation_verdicts (id, negotiation_id, agreement_reached, agreed_price, winner, rationale, satisfaction_a, satisfaction_b)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), res.ID, res.Verdict.AgreementReached, agreedPrice,
			string(res.Verdict.Winner), res.Verdict.Rationale,
			string(res.Verdict.SatisfactionA), string(res.Verdict.SatisfactionB),
		)
		if err != nil {
			return fmt.Errorf("insert verdict: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetRun fetches a run with its full transcript and verdict, if any.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	var rec RunRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, scenario, persona_a, persona_b, state, rounds, violations_a, violations_b, created_at
		FROM negotiations WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Scenario, &rec.PersonaA, &rec.PersonaB, &rec.State, &rec.Rounds, &rec.ViolationsA, &rec.ViolationsB, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query negotiation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, round, speaker, persona, message, offer
		FROM negotiation_turns WHERE negotiation_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var turn negotiation.Turn
		if err := rows.Scan(&turn.ID, &turn.Round, &turn.Speaker, &turn.Persona, &turn.Message, &turn.Offer); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		rec.Transcript = append(rec.Transcript, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	var v negotiation.Verdict
	var agreedPrice *float64
	err = s.pool.QueryRow(ctx, `
		SELECT agreement_reached, agreed_price, winner, rationale, satisfaction_a, satisfaction_b
		FROM negotiation_verdicts WHERE negotiation_id = $1`, id,
	).Scan(&v.AgreementReached, &agreedPrice, &v.Winner, &v.Rationale, &v.SatisfactionA, &v.SatisfactionB)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Failed runs have no verdict.
	case err != nil:
		return nil, fmt.Errorf("query verdict: %w", err)
	default:
		if agreedPrice != nil {
			v.AgreedTerms = &negotiation.AgreedTerms{Price: *agreedPrice}
		}
		rec.Verdict = &v
	}

	return &rec, nil
}

// ListRecent returns the newest runs, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT n.id, n.scenario, n.persona_a, n.persona_b, n.state, n.rounds, v.agreement_reached, n.created_at
		FROM negotiations n
		LEFT JOIN negotiation_verdicts v ON v.negotiation_id = n.id
		ORDER BY n.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		if err := rows.Scan(&sum.ID, &sum.Scenario, &sum.PersonaA, &sum.PersonaB, &sum.State, &sum.Rounds, &sum.AgreementReached, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
