package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/runstore"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded training runs",
	Long:  "List the training runs recorded in the run registry, newest first. With a run id, show the evaluations recorded for that run.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	report := ui.NewReportUI(cmd.OutOrStdout(), s.quiet)

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		evals, err := store.Evaluations(ctx, run.ID)
		if err != nil {
			return err
		}
		report.PrintRuns([]ui.RunRow{runRow(*run, evals)})
		rows := make([]ui.EvalRow, len(evals))
		for i, e := range evals {
			rows[i] = ui.EvalRow{Split: e.Split, Epoch: e.Epoch, Step: e.Step, Loss: e.Loss, Accuracy: e.Accuracy, Samples: e.Samples}
		}
		report.PrintEvaluations("Evaluations", rows)
		return nil
	}

	runs, err := store.ListRuns(ctx, viper.GetInt("runs.limit"))
	if err != nil {
		return err
	}
	rows := make([]ui.RunRow, 0, len(runs))
	for _, r := range runs {
		evals, err := store.Evaluations(ctx, r.ID)
		if err != nil {
			return err
		}
		rows = append(rows, runRow(r, evals))
	}
	report.PrintRuns(rows)
	return nil
}

// runRow summarizes a run with its best validation accuracy.
func runRow(r runstore.Run, evals []runstore.Evaluation) ui.RunRow {
	row := ui.RunRow{
		ID:        r.ID,
		Status:    r.Status,
		BaseModel: r.BaseModel,
		Dataset:   r.Dataset,
		OutputDir: r.OutputDir,
		Started:   r.StartedAt,
		Error:     r.Error,
	}
	if r.FinishedAt != nil {
		row.Duration = r.FinishedAt.Sub(r.StartedAt)
	}
	for _, e := range evals {
		if e.Split != dataset.Validation {
			continue
		}
		if row.Accuracy == nil || e.Accuracy > *row.Accuracy {
			acc := e.Accuracy
			row.Accuracy = &acc
		}
	}
	return row
}

func init() {
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 = all)")
	viper.BindPFlag("runs.limit", runsCmd.Flags().Lookup("limit"))
}
