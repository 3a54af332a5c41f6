// Command morfx is the CLI front end to the structural editing engine:
// build-graph, verify-plan, execute-step and run-plan each read one JSON
// document from stdin (or --file) and write one JSON document to stdout, per
// the contract in SPEC_FULL.md §6. Grounded on the teacher's demo/cmd
// cobra root-plus-subcommand wiring, generalized from its scenario-runner
// shape into the engine's four operations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oxhq/morfx/internal/config"
	"github.com/oxhq/morfx/internal/diffutil"
	"github.com/oxhq/morfx/internal/discover"
	"github.com/oxhq/morfx/internal/graph"
	"github.com/oxhq/morfx/internal/model"
	"github.com/oxhq/morfx/internal/plan"
	"github.com/oxhq/morfx/internal/store"
	"github.com/oxhq/morfx/internal/verify"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var inputFile string
	var dsn string

	root := &cobra.Command{
		Use:   "morfx",
		Short: "Structural code editing engine",
		Long:  "Locator-addressed AST surgery, templates and fragments, verified before and after every edit.",
	}
	root.PersistentFlags().StringVar(&inputFile, "file", "", "read the JSON request from this file instead of stdin")
	root.PersistentFlags().StringVar(&dsn, "db", "", "plan-run history database DSN (default: $MORFX_DATABASE_URL or morfx.db)")

	root.AddCommand(
		newBuildGraphCmd(&inputFile),
		newVerifyPlanCmd(&inputFile),
		newExecuteStepCmd(&inputFile),
		newRunPlanCmd(&inputFile, &dsn),
	)
	return root
}

func readInput(inputFile string) ([]byte, error) {
	if inputFile != "" {
		return os.ReadFile(inputFile)
	}
	return io.ReadAll(os.Stdin)
}

func emit(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// buildGraphRequest is the input document for build-graph: either an
// explicit file list or roots to discover files under.
type buildGraphRequest struct {
	Files   []string `json:"files,omitempty"`
	Roots   []string `json:"roots,omitempty"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

func newBuildGraphCmd(inputFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "build-graph",
		Short: "Parse files and emit the symbol/import graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(*inputFile)
			if err != nil {
				return err
			}
			var req buildGraphRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("decoding build-graph request: %w", err)
			}

			files := req.Files
			if len(files) == 0 && len(req.Roots) > 0 {
				files, err = discover.Files(cmd.Context(), req.Roots, discover.Options{Include: req.Include, Exclude: req.Exclude})
				if err != nil {
					return fmt.Errorf("discovering files: %w", err)
				}
			}

			g := graph.Build(cmd.Context(), files)
			return emit(g)
		},
	}
}

// verifyPlanRequest carries a plan plus the graph it should be checked
// against (nil graph skips the graph-dependent layers).
type verifyPlanRequest struct {
	Plan  json.RawMessage `json:"plan"`
	Graph *model.Graph    `json:"graph,omitempty"`
}

func newVerifyPlanCmd(inputFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-plan",
		Short: "Run the pre-execution verification layers against a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(*inputFile)
			if err != nil {
				return err
			}
			var req verifyPlanRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("decoding verify-plan request: %w", err)
			}
			p, err := plan.ParsePlan(req.Plan)
			if err != nil {
				return err
			}
			result := verify.VerifyPlan(cmd.Context(), p, req.Graph)
			return emit(result)
		},
	}
}

func newExecuteStepCmd(inputFile *string) *cobra.Command {
	var showDiff bool
	cmd := &cobra.Command{
		Use:   "execute-step",
		Short: "Apply a single plan step",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(*inputFile)
			if err != nil {
				return err
			}
			var step model.Step
			if err := json.Unmarshal(data, &step); err != nil {
				return fmt.Errorf("decoding step: %w", err)
			}

			var before string
			if showDiff && step.Target != nil && step.Target.File != "" {
				if b, err := os.ReadFile(step.Target.File); err == nil {
					before = string(b)
				}
			}

			result := plan.ExecuteStep(cmd.Context(), &step, nil)

			if showDiff && result.Success && step.Target != nil && step.Target.File != "" {
				if after, err := os.ReadFile(step.Target.File); err == nil {
					if result.Result == nil {
						result.Result = map[string]any{}
					}
					result.Result["diff"] = diffutil.Unified(step.Target.File, before, string(after))
				}
			}
			if err := emit(result); err != nil {
				return err
			}
			if !result.Success {
				// The result JSON is already on stdout; exit 1 without usage text.
				cmd.SilenceUsage = true
				cmd.SilenceErrors = true
				return fmt.Errorf("step failed: %s", result.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDiff, "diff", false, "include a unified diff of the change in the result")
	return cmd
}

// runPlanRequest carries the whole plan plus its supporting graph.
type runPlanRequest struct {
	Plan  json.RawMessage `json:"plan"`
	Graph *model.Graph    `json:"graph,omitempty"`
}

func newRunPlanCmd(inputFile, dsn *string) *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "run-plan",
		Short: "Execute every step of a plan, aborting and rolling back on first failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(*inputFile)
			if err != nil {
				return err
			}
			var req runPlanRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("decoding run-plan request: %w", err)
			}
			p, err := plan.ParsePlan(req.Plan)
			if err != nil {
				return err
			}

			result := plan.Run(cmd.Context(), p, req.Graph)

			if record {
				if err := recordRun(cmd.Context(), *dsn, p, result); err != nil {
					fmt.Fprintf(os.Stderr, "warning: failed to record plan run history: %v\n", err)
				}
			}
			return emit(result)
		},
	}
	cmd.Flags().BoolVar(&record, "record", true, "persist this run to the history store")
	return cmd
}

func recordRun(ctx context.Context, dsn string, p *model.Plan, result *plan.Result) error {
	cfg := config.Load()
	if dsn == "" {
		dsn = cfg.DatabaseURL
	}
	s, err := store.Open(dsn, cfg.Verbose)
	if err != nil {
		return err
	}
	defer s.Close()

	id := uuid.NewString()
	if err := s.RecordRun(id, p, result.StepResults, result.Aborted); err != nil {
		return err
	}

	for i, step := range p.Steps {
		if model.DetectTier(&step) != model.TierLegacy || step.Op == "" {
			continue
		}
		r := result.StepResults[i]
		if r == nil || r.Result == nil {
			continue
		}
		count, _ := r.Result["change_count"].(int)
		pattern, _ := step.Params["pattern"].(string)
		replacement, _ := step.Params["replacement"].(string)
		file := ""
		if step.Target != nil {
			file = step.Target.File
		}
		if err := s.RecordLegacyOp(uuid.NewString(), id, file, step.Op, pattern, replacement, count); err != nil {
			return err
		}
	}
	return nil
}
