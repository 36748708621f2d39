package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PersonaStats aggregates outcomes for one persona in one role across all
// stored runs.
type PersonaStats struct {
	ID           uuid.UUID
	Persona      string
	Role         string
	Runs         int
	Agreements   int
	TotalUtility float64
}

// MeanUtility is the average utility over runs that reached agreement.
func (p PersonaStats) MeanUtility() float64 {
	if p.Agreements == 0 {
		return 0
	}
	return p.TotalUtility / float64(p.Agreements)
}

// GetPersonaStats fetches the aggregate for a persona/role combination.
func (s *Store) GetPersonaStats(ctx context.Context, persona, role string) (*PersonaStats, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, persona, role, runs, agreements, total_utility
		FROM persona_stats
		WHERE persona = $1 AND role = $2`,
		persona, role,
	)

	var p PersonaStats
	err := row.Scan(&p.ID, &p.Persona, &p.Role, &p.Runs, &p.Agreements, &p.TotalUtility)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordOutcome folds one run result into the persona's aggregate. Utility is
// only accumulated when the run reached agreement.
func (s *Store) RecordOutcome(ctx context.Context, persona, role string, agreed bool, utility float64) error {
	agreements := 0
	if agreed {
		agreements = 1
	} else {
		utility = 0
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO persona_stats (id, persona, role, runs, agreements, total_utility, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, now())
		ON CONFLICT (persona, role)
		DO UPDATE SET
			runs = persona_stats.runs + 1,
			agreements = persona_stats.agreements + $4,
			total_utility = persona_stats.total_utility + $5,
			updated_at = now()`,
		uuid.New(), persona, role, agreements, utility,
	)
	if err != nil {
		return fmt.Errorf("upsert persona stats: %w", err)
	}
	return nil
}
