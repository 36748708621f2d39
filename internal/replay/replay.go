// Package replay re-adjudicates exported negotiation runs. When judging
// prompts or fallback heuristics change, a replay pass over the exported
// transcripts shows which verdicts would come out differently, and can
// rewrite them in place.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/parleysim/parley/internal/negotiation"
)

// Adjudicator is the judging surface replay drives. Satisfied by
// *judge.Judge; tests substitute a double.
type Adjudicator interface {
	Adjudicate(ctx context.Context, t negotiation.Transcript, consA, consB negotiation.ConstraintSet) negotiation.Verdict
}

// RunExport is the on-disk form of one exported run.
type RunExport struct {
	ID           uuid.UUID                 `json:"id"`
	Scenario     string                    `json:"scenario"`
	ConstraintsA negotiation.ConstraintSet `json:"constraints_a"`
	ConstraintsB negotiation.ConstraintSet `json:"constraints_b"`
	Transcript   negotiation.Transcript    `json:"transcript"`
	Verdict      *negotiation.Verdict      `json:"verdict,omitempty"`
}

// Config holds the replay command configuration.
type Config struct {
	Dir        string
	SingleFile string // process a single file only
	DryRun     bool   // report changes without rewriting files
	StatePath  string // progress file, empty uses the default
}

// Summary is what a replay pass did.
type Summary struct {
	Files      int
	Readjudged int
	Changed    int
	Errors     int
}

// Runner walks exported runs and re-adjudicates each transcript.
type Runner struct {
	cfg    Config
	judge  Adjudicator
	logger *slog.Logger
}

func NewRunner(cfg Config, judge Adjudicator, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, judge: judge, logger: logger}
}

// Run executes the replay pass. Progress is checkpointed so an interrupted
// pass resumes where it stopped.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return Summary{}, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return Summary{}, fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("export files discovered", "count", len(files))

	var sum Summary
	for _, path := range files {
		select {
		case <-ctx.Done():
			r.logger.Info("replay interrupted, saving state")
			_ = state.Save()
			return sum, ctx.Err()
		default:
		}

		if state.IsProcessed(path) {
			continue
		}
		sum.Files++

		changed, err := r.replayFile(ctx, path)
		if err != nil {
			r.logger.Error("replay failed", "path", path, "error", err)
			state.AddError(fmt.Sprintf("replay %s: %v", path, err))
			sum.Errors++
			continue
		}
		sum.Readjudged++
		if changed {
			sum.Changed++
		}

		state.MarkProcessed(path)
		state.RunsReplayed++
		if changed {
			state.VerdictsChanged++
		}
		_ = state.Save()
	}

	_ = state.Save()
	r.logger.Info("replay complete",
		"files", sum.Files,
		"readjudged", sum.Readjudged,
		"changed", sum.Changed,
		"errors", sum.Errors,
		"dry_run", r.cfg.DryRun,
	)
	return sum, nil
}

// replayFile re-adjudicates one export and reports whether the verdict
// materially changed. The file is rewritten only outside dry-run mode.
func (r *Runner) replayFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read export: %w", err)
	}

	var export RunExport
	if err := json.Unmarshal(data, &export); err != nil {
		return false, fmt.Errorf("parse export: %w", err)
	}
	if len(export.Transcript) == 0 {
		return false, fmt.Errorf("export has no transcript")
	}

	verdict := r.judge.Adjudicate(ctx, export.Transcript, export.ConstraintsA, export.ConstraintsB)
	changed := verdictChanged(export.Verdict, verdict)

	if changed {
		r.logger.Info("verdict changed",
			"run_id", export.ID,
			"scenario", export.Scenario,
			"old_winner", oldWinner(export.Verdict),
			"new_winner", verdict.Winner,
		)
	}

	if r.cfg.DryRun || !changed {
		return changed, nil
	}

	export.Verdict = &verdict
	out, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return changed, fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return changed, fmt.Errorf("write export: %w", err)
	}
	return changed, nil
}

// verdictChanged ignores the rationale text: two verdicts that agree on
// outcome, terms, winner, and satisfaction are the same verdict.
func verdictChanged(old *negotiation.Verdict, next negotiation.Verdict) bool {
	if old == nil {
		return true
	}
	if old.AgreementReached != next.AgreementReached ||
		old.Winner != next.Winner ||
		old.SatisfactionA != next.SatisfactionA ||
		old.SatisfactionB != next.SatisfactionB {
		return true
	}
	oldPrice, nextPrice := old.AgreedTerms, next.AgreedTerms
	if (oldPrice == nil) != (nextPrice == nil) {
		return true
	}
	return oldPrice != nil && oldPrice.Price != nextPrice.Price
}

func oldWinner(v *negotiation.Verdict) negotiation.Winner {
	if v == nil {
		return ""
	}
	return v.Winner
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		if _, err := os.Stat(r.cfg.SingleFile); err != nil {
			return nil, fmt.Errorf("single file not found: %s", r.cfg.SingleFile)
		}
		return []string{r.cfg.SingleFile}, nil
	}

	var files []string
	err := filepath.Walk(r.cfg.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
