package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/labels"
	"github.com/idlab-discover/emotune-cli/internal/metrics"
	"github.com/idlab-discover/emotune-cli/internal/trainer"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Report loss and accuracy of a checkpoint on a dataset split",
	RunE:  runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	splitName := viper.GetString("evaluate.split")
	if splitName == "" {
		splitName = dataset.Validation
	}
	dev, err := device.Parse(viper.GetString("evaluate.device"))
	if err != nil {
		return apperr.User(err.Error())
	}
	dir, err := resolveCheckpoint(viper.GetString("evaluate.checkpoint"), outputDirOrDefault("evaluate.output-dir"), viper.GetBool("evaluate.interactive"))
	if err != nil {
		return err
	}
	datasetID := viper.GetString("evaluate.dataset")
	if datasetID == "" {
		datasetID = dataset.DefaultDatasetID
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	wf := newWorkflow(s, out)
	ckptStage := addStage(wf, "Loading checkpoint")
	dataStage := addStage(wf, "Loading dataset")
	evalStage := addStage(wf, "Evaluating")
	startWorkflow(wf)
	defer stopWorkflow(wf)

	ckptStage.start(dir)
	m, tok, err := loadCheckpoint(dir)
	if err := ckptStage.finish(dir, err); err != nil {
		return err
	}

	dataStage.start(splitName)
	var split dataset.Split
	err = func() error {
		var loader dataset.Loader
		switch d := viper.GetString("evaluate.data-dir"); {
		case d != "":
			loader = dataset.FileLoader{Dir: d}
		case s.mode == modeDummy:
			split = dataset.Sample()[splitName]
			if split == nil {
				return apperr.Userf("unknown split %q", splitName)
			}
			return nil
		default:
			l := dataset.NewHubLoader(newHubClient())
			l.DatasetID = datasetID
			if c := viper.GetString("evaluate.dataset-config"); c != "" {
				l.Config = c
			}
			l.Limit = viper.GetInt("evaluate.limit")
			loader = l
		}
		dd, err := loader.Load(ctx, splitName)
		if err != nil {
			return err
		}
		split, err = dd.Get(splitName)
		return err
	}()
	if err := dataStage.finish(fmt.Sprintf("%d examples", len(split)), err); err != nil {
		return err
	}

	a := trainer.DefaultArguments()
	a.Device = dev
	if bs := viper.GetInt("evaluate.batch-size"); bs > 0 {
		a.EvalBatchSize = bs
	}
	t := &trainer.Trainer{Args: a, Model: m, Tokenizer: tok}

	evalStage.start(dev.String())
	pred, err := t.Predict(ctx, split)
	if err != nil {
		return evalStage.finish("", err)
	}
	r := pred.Metrics
	r.Split = splitName
	evalStage.done(fmt.Sprintf("accuracy %.4f", r.Accuracy))
	stopWorkflow(wf)

	report := ui.NewReportUI(out, s.quiet)
	if !s.quiet {
		fmt.Fprintln(out)
	}
	report.PrintEvaluations("Evaluation of "+dir, evalRows(r))
	if viper.GetBool("evaluate.confusion") && len(split) > 0 {
		cm, err := metrics.ConfusionMatrix(pred.Predictions, pred.LabelIDs, labels.NumLabels)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderConfusion(cm.At))
	}
	return nil
}

// renderConfusion prints rows as true labels and columns as predictions.
func renderConfusion(at func(i, j int) float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-9s", ""))
	for _, n := range labels.Names {
		sb.WriteString(fmt.Sprintf("%9s", n))
	}
	for i, n := range labels.Names {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-9s", n))
		for j := range labels.Names {
			sb.WriteString(fmt.Sprintf("%9d", int(at(i, j))))
		}
	}
	return sb.String()
}

// outputDirOrDefault returns the configured output directory for key, or
// the training default.
func outputDirOrDefault(key string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return trainer.DefaultArguments().OutputDir
}

func init() {
	f := evaluateCmd.Flags()
	f.StringP("checkpoint", "c", "", "Checkpoint directory (default the final model in --output-dir)")
	f.StringP("output-dir", "o", "", "Training output directory (default results)")
	f.BoolP("interactive", "i", false, "Pick a checkpoint under --output-dir interactively")
	f.String("split", "", "Split to evaluate: train|validation|test (default validation)")
	f.String("dataset", "", "Dataset id on the hub (default emotion)")
	f.String("dataset-config", "", "Dataset config name (default split)")
	f.String("data-dir", "", "Load the split from local .jsonl or .csv files instead of the hub")
	f.Int("limit", 0, "Maximum rows to download (0 = all)")
	f.Int("batch-size", 0, "Evaluation batch size (default 16)")
	f.String("device", "", "Device to evaluate on (default cpu)")
	f.Bool("confusion", false, "Print the confusion matrix")

	for _, name := range []string{"checkpoint", "output-dir", "interactive", "split", "dataset", "dataset-config", "data-dir", "limit", "batch-size", "device", "confusion"} {
		viper.BindPFlag("evaluate."+name, f.Lookup(name))
	}
}
