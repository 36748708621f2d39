// Package scenario loads negotiation setups from JSON files: the public
// item description both agents see, and each side's private envelope.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parleysim/parley/internal/negotiation"
	"github.com/parleysim/parley/internal/persona"
)

// Party is one agent's setup. Sellers carry a minimum acceptable price,
// buyers a maximum budget; both carry an ideal price. These are private to
// the agent.
type Party struct {
	Role                   string   `json:"role"`
	Persona                string   `json:"persona,omitempty"`
	MinimumAcceptablePrice *float64 `json:"minimum_acceptable_price,omitempty"`
	MaximumBudget          *float64 `json:"maximum_budget,omitempty"`
	IdealPrice             float64  `json:"ideal_price"`
	Urgency                string   `json:"urgency,omitempty"`
}

// Constraints converts the party's envelope into the engine's form.
func (p Party) Constraints() (negotiation.ConstraintSet, error) {
	switch negotiation.Role(p.Role) {
	case negotiation.RoleSeller:
		if p.MinimumAcceptablePrice == nil {
			return negotiation.ConstraintSet{}, fmt.Errorf("seller requires minimum_acceptable_price")
		}
		return negotiation.ConstraintSet{
			Role:    negotiation.RoleSeller,
			Bound:   *p.MinimumAcceptablePrice,
			Ideal:   p.IdealPrice,
			Urgency: p.Urgency,
		}, nil
	case negotiation.RoleBuyer:
		if p.MaximumBudget == nil {
			return negotiation.ConstraintSet{}, fmt.Errorf("buyer requires maximum_budget")
		}
		return negotiation.ConstraintSet{
			Role:    negotiation.RoleBuyer,
			Bound:   *p.MaximumBudget,
			Ideal:   p.IdealPrice,
			Urgency: p.Urgency,
		}, nil
	default:
		return negotiation.ConstraintSet{}, fmt.Errorf("unknown role %q", p.Role)
	}
}

// Scenario is one loadable negotiation setup.
type Scenario struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	PublicInfo  map[string]string `json:"public_info"`
	AgentA      Party             `json:"agent_a"`
	AgentB      Party             `json:"agent_b"`
	MaxRounds   int               `json:"max_rounds,omitempty"`
}

// Validate checks structural requirements: a name, valid opposing roles,
// known personas, and complete envelopes on both sides.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing name")
	}
	if _, err := s.AgentA.Constraints(); err != nil {
		return fmt.Errorf("agent_a: %w", err)
	}
	if _, err := s.AgentB.Constraints(); err != nil {
		return fmt.Errorf("agent_b: %w", err)
	}
	if s.AgentA.Role == s.AgentB.Role {
		return fmt.Errorf("agents must take opposing roles, both are %q", s.AgentA.Role)
	}
	for _, p := range []Party{s.AgentA, s.AgentB} {
		if p.Persona != "" && !persona.Exists(p.Persona) {
			return fmt.Errorf("unknown persona %q", p.Persona)
		}
		if p.IdealPrice <= 0 {
			return fmt.Errorf("ideal_price must be positive")
		}
	}
	return nil
}

// PublicInfoText renders the shared context as prompt-ready lines, keys
// sorted for stable output.
func (s *Scenario) PublicInfoText() string {
	keys := make([]string, 0, len(s.PublicInfo))
	for k := range s.PublicInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\n", k, s.PublicInfo[k])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Load reads and validates a single scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", filepath.Base(path), err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return &s, nil
}

// LoadDir loads every *.json scenario in a directory, keyed by name.
func LoadDir(dir string) (map[string]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}

	scenarios := make(map[string]*Scenario, len(paths))
	for _, path := range paths {
		s, err := Load(path)
		if err != nil {
			return nil, err
		}
		if _, dup := scenarios[s.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q", s.Name)
		}
		scenarios[s.Name] = s
	}
	return scenarios, nil
}
