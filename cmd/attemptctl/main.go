// Command attemptctl inspects stored interview attempts and re-runs their evaluation.
//
//	go run ./cmd/attemptctl show <attempt-id>
//	go run ./cmd/attemptctl evaluate <attempt-id> [--dry-run]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"interview-backend/internal/attempts"
	"interview-backend/internal/bootstrap"
	"interview-backend/internal/evaluation"
	"interview-backend/internal/prompts"
	"interview-backend/internal/shared/config"
	"interview-backend/internal/shared/storage/db"
)

// env is what the subcommands need; main builds it from configuration.
type env struct {
	repo      attempts.Repo
	evaluator interface {
		Evaluate(ctx context.Context, turns []attempts.Turn) evaluation.Result
	}
	now func() time.Time
}

func main() {
	cfg := config.Load()

	var sqlDB *sql.DB
	open := func(ctx context.Context) (*env, error) {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
		conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		sqlDB = conn

		client, err := bootstrap.BuildLLM(cfg)
		if err != nil {
			return nil, err
		}
		profile, err := prompts.Load(cfg.Interview.PromptsFile)
		if err != nil {
			return nil, err
		}
		return &env{
			repo:      &attempts.PGRepo{DB: conn},
			evaluator: evaluation.New(client, profile.EvaluationPrompt),
			now:       time.Now,
		}, nil
	}

	err := newRootCmd(open).Execute()
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open func(ctx context.Context) (*env, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "attemptctl",
		Short:         "Inspect and re-evaluate interview attempts",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newShowCmd(open), newEvaluateCmd(open))
	return root
}

func newShowCmd(open func(ctx context.Context) (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "show <attempt-id>",
		Short: "Print an attempt and its transcript as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			attempt, err := e.repo.GetByID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load attempt %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(attempt)
		},
	}
}

func newEvaluateCmd(open func(ctx context.Context) (*env, error)) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "evaluate <attempt-id>",
		Short: "Re-run evaluation over a stored transcript",
		Long: `Evaluate scores the stored transcript again and, unless --dry-run is set,
replaces the attempt's score, feedback and verdict and marks it completed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := open(ctx)
			if err != nil {
				return err
			}
			attempt, err := e.repo.GetByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load attempt %s: %w", args[0], err)
			}
			if len(attempt.Turns) == 0 {
				return fmt.Errorf("attempt %s has no turns to evaluate", attempt.ID)
			}

			result := e.evaluator.Evaluate(ctx, attempt.Turns)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "score=%.1f verdict=%s fallback=%t\n", result.Score, result.Verdict, result.Fallback)
			fmt.Fprintln(out, result.Feedback)
			if dryRun {
				return nil
			}
			if result.Fallback {
				return errors.New("evaluation fell back; attempt left unchanged")
			}

			completedAt := e.now()
			if attempt.CompletedAt != nil {
				completedAt = *attempt.CompletedAt
			}
			return e.repo.Finalize(ctx, attempt.ID, attempts.Result{
				Score:       result.Score,
				Feedback:    result.Feedback,
				Verdict:     result.Verdict,
				CompletedAt: completedAt,
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the result without storing it")
	return cmd
}
