package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/amitk432/Resolve25-sub002/internal/action"
	"github.com/amitk432/Resolve25-sub002/internal/parser"
	"github.com/amitk432/Resolve25-sub002/pkg/engine"
	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

var (
	runStrategy   string
	runTimeout    time.Duration
	runJSONOutput string
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a task plan",
	Long: `Execute a YAML task plan and print the result.

The plan's strategy (sequential, parallel, adaptive) can be overridden on
the command line. The command exits non-zero when the run fails.`,
	Example: `  # execute a plan
  taskengine run plan.yaml

  # force parallel execution, write the full result as JSON
  taskengine run --strategy parallel --out-json result.json plan.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "override the plan's execution strategy")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the run after this duration")
	runCmd.Flags().StringVar(&runJSONOutput, "out-json", "", "write the full result JSON to a file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	steps, err := plan.Compile()
	if err != nil {
		return err
	}

	strategy := plan.Strategy
	if runStrategy != "" {
		strategy = runStrategy
	}

	eng := engine.New(engine.DefaultConfig())
	if err := eng.RegisterExecutor(action.NewHTTP()); err != nil {
		return err
	}
	if err := eng.RegisterExecutor(action.NewScript()); err != nil {
		return err
	}
	if err := eng.Start(); err != nil {
		return err
	}
	defer func() { _ = eng.Stop() }()

	taskID, err := eng.SubmitWith(strategy, steps, plan.Context)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if runTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "aborting run...")
			_ = eng.Abort(taskID)
		case <-ctx.Done():
			_ = eng.Abort(taskID)
		}
	}()

	if !quiet {
		fmt.Printf("plan %s: %d steps, strategy %s\n", planName(plan, args[0]), len(steps), displayStrategy(strategy))
	}

	result, err := eng.Wait(context.Background(), taskID)
	if err != nil {
		return err
	}

	if !quiet {
		printResult(result)
	}
	if runJSONOutput != "" {
		if err := os.WriteFile(runJSONOutput, []byte(oj.JSON(result, 2)), 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	if !result.Success {
		return fmt.Errorf("run %s: %s", result.TaskID, result.Status)
	}
	return nil
}

func planName(plan *parser.Plan, path string) string {
	if plan.Name != "" {
		return plan.Name
	}
	return path
}

func displayStrategy(strategy string) string {
	if strategy == "" {
		return engine.StrategyAdaptive
	}
	return strategy
}

func printResult(r *types.ExecutionResult) {
	fmt.Println()
	fmt.Printf("  status:    %s\n", r.Status)
	fmt.Printf("  steps:     %d/%d completed\n", r.StepsCompleted, r.TotalSteps)
	fmt.Printf("  duration:  %s\n", r.ExecutionTime.Round(time.Millisecond))
	fmt.Printf("  strategy:  %s (%s)\n", r.Strategy, r.StrategyReason)
	if r.Degraded {
		fmt.Printf("  degraded:  %d step(s) failed non-critically\n", len(r.Errors))
	}
	if r.Metrics != nil {
		fmt.Printf("  success:   %.0f%%\n", r.Metrics.SuccessRate*100)
	}
	for _, e := range r.Errors {
		fmt.Printf("  error:     %s\n", e.Message)
	}
}
