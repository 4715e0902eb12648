package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/hub"
	"github.com/idlab-discover/emotune-cli/internal/hwinfo"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/runstore"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
	"github.com/idlab-discover/emotune-cli/internal/trainer"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

const defaultBaseModel = "distilbert-base-uncased"

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fine-tune a classifier on the emotion dataset",
	Long:  "Load the emotion dataset, tokenize it with the base model's vocabulary, fine-tune a six-class classification head, evaluate it, and save checkpoints and the final model under --output-dir.",
	RunE:  runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	targs, err := trainArguments()
	if err != nil {
		return err
	}
	baseModel := strings.TrimSpace(viper.GetString("train.model"))
	if baseModel == "" {
		baseModel = defaultBaseModel
	}
	datasetID := viper.GetString("train.dataset")
	if datasetID == "" {
		datasetID = dataset.DefaultDatasetID
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	wf := newWorkflow(s, out)
	loadStage := addStage(wf, "Loading dataset")
	tokStage := addStage(wf, "Loading tokenizer")
	modelStage := addStage(wf, "Building model")
	trainStage := addStage(wf, "Training")
	saveStage := addStage(wf, "Saving model")
	testStage := addStage(wf, "Evaluating test split")
	startWorkflow(wf)
	defer stopWorkflow(wf)

	client := newHubClient()

	loadStage.start(datasetID)
	data, err := loadDataset(ctx, s, client, datasetID)
	if err := loadStage.finish(fmt.Sprintf("%d train / %d validation / %d test", len(data[dataset.Train]), len(data[dataset.Validation]), len(data[dataset.Test])), err); err != nil {
		return err
	}

	tokStage.start(baseModel)
	tok, err := loadTokenizer(ctx, s, client, baseModel, data[dataset.Train])
	if err := tokStage.finish(fmt.Sprintf("%d tokens, max length %d", safeVocabSize(tok), safeMaxLength(tok)), err); err != nil {
		return err
	}

	modelStage.start(targs.Device.String())
	m, err := model.New(model.NewConfig(baseModel, tok.Vocab.Size(), tok.MaxLength, tok.PadID()), targs.Seed)
	if err := modelStage.finish(model.Architecture, err); err != nil {
		return err
	}

	t, err := trainer.New(targs, m, tok, data[dataset.Train], data[dataset.Validation])
	if err != nil {
		return trainStage.finish("", err)
	}
	hw := hwinfo.Describe()
	t.Hardware, t.Software = hw.Hardware(), hw.Software()

	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()
	run, err := store.StartRun(ctx, baseModel, datasetID, targs.OutputDir, targs)
	if err != nil {
		return err
	}

	var recordErr error
	t.OnProgress = func(ev trainer.ProgressEvent) {
		switch ev.Kind {
		case trainer.EventStep:
			trainStage.update(fmt.Sprintf("epoch %d/%d · step %d/%d · loss %.4f", ev.Epoch, targs.Epochs, ev.Step, ev.MaxSteps, ev.Loss))
		case trainer.EventEval:
			e := *ev.Eval
			if err := store.RecordEval(ctx, runstore.Evaluation{RunID: run.ID, Epoch: e.Epoch, Step: e.Step, Split: e.Split, Loss: e.Loss, Accuracy: e.Accuracy, Samples: e.Samples}); err != nil && recordErr == nil {
				recordErr = err
			}
		}
	}

	trainStage.start("")
	res, trainErr := t.Train(ctx)
	if errors.Is(trainErr, context.Canceled) {
		trainStage.skip(fmt.Sprintf("interrupted at step %d", res.GlobalStep))
	} else {
		trainStage.finish(fmt.Sprintf("%d steps, train loss %.4f", res.GlobalStep, res.TrainLoss), trainErr)
	}
	if trainErr != nil {
		saveStage.skip("training did not finish")
		testStage.skip("training did not finish")
		// The run record outlives the interrupt.
		if err := store.FinishRun(context.Background(), run.ID, trainErr); err != nil {
			return errors.Join(trainErr, err)
		}
		return trainErr
	}

	saveStage.start(targs.OutputDir)
	final, err := t.SaveFinal()
	if err := saveStage.finish(final, err); err != nil {
		return errors.Join(err, store.FinishRun(ctx, run.ID, err))
	}

	evals := res.Evaluations
	if test := data[dataset.Test]; viper.GetBool("train.test") && len(test) > 0 {
		testStage.start(fmt.Sprintf("%d examples", len(test)))
		r, err := t.Evaluate(ctx, test)
		if err := testStage.finish(fmt.Sprintf("accuracy %.4f", r.Accuracy), err); err != nil {
			return errors.Join(err, store.FinishRun(ctx, run.ID, err))
		}
		r.Split, r.Epoch, r.Step = dataset.Test, float64(res.Epochs), res.GlobalStep
		if err := store.RecordEval(ctx, runstore.Evaluation{RunID: run.ID, Epoch: r.Epoch, Step: r.Step, Split: r.Split, Loss: r.Loss, Accuracy: r.Accuracy, Samples: r.Samples}); err != nil && recordErr == nil {
			recordErr = err
		}
		evals = append(evals, r)
	} else {
		testStage.skip("disabled")
	}

	if err := store.FinishRun(ctx, run.ID, nil); err != nil {
		return err
	}
	if recordErr != nil {
		return fmt.Errorf("record evaluation: %w", recordErr)
	}

	stopWorkflow(wf)
	if !s.quiet {
		fmt.Fprintln(out)
	}
	ui.NewReportUI(out, s.quiet).PrintEvaluations("Evaluation", evalRows(evals...))
	if !s.quiet {
		fmt.Fprintf(out, "\n%s\n", ui.FormatStatus("success", fmt.Sprintf("Model saved to %s (run %s)", ui.Highlight.Render(final), run.ID)))
	}
	return nil
}

// trainArguments resolves the training arguments from flags and config.
func trainArguments() (trainer.Arguments, error) {
	a := trainer.DefaultArguments()
	if v := viper.GetString("train.output-dir"); v != "" {
		a.OutputDir = v
	}
	if v := viper.GetFloat64("train.learning-rate"); v != 0 {
		a.LearningRate = v
	}
	if v := viper.GetInt("train.batch-size"); v != 0 {
		a.TrainBatchSize = v
	}
	if v := viper.GetInt("train.eval-batch-size"); v != 0 {
		a.EvalBatchSize = v
	}
	if v := viper.GetInt("train.epochs"); v != 0 {
		a.Epochs = v
	}
	a.WeightDecay = viper.GetFloat64("train.weight-decay")
	a.WarmupSteps = viper.GetInt("train.warmup-steps")
	a.EvalSteps = viper.GetInt("train.eval-steps")
	a.SaveSteps = viper.GetInt("train.save-steps")
	if v := viper.GetInt("train.logging-steps"); v != 0 {
		a.LoggingSteps = v
	}
	a.Seed = viper.GetUint64("train.seed")

	var err error
	if v := viper.GetString("train.eval-strategy"); v != "" {
		if a.EvalStrategy, err = trainer.ParseStrategy(v); err != nil {
			return a, apperr.Userf("invalid --eval-strategy: %v", err)
		}
	}
	if v := viper.GetString("train.save-strategy"); v != "" {
		if a.SaveStrategy, err = trainer.ParseStrategy(v); err != nil {
			return a, apperr.Userf("invalid --save-strategy: %v", err)
		}
	}
	if a.Device, err = device.Parse(viper.GetString("train.device")); err != nil {
		return a, apperr.User(err.Error())
	}
	if err := a.Validate(); err != nil {
		return a, apperr.User(err.Error())
	}
	return a, nil
}

// loadDataset picks the data source: --data-dir, the bundled sample in
// dummy mode, or the datasets-server.
func loadDataset(ctx context.Context, s settings, client *hub.Client, datasetID string) (dataset.DatasetDict, error) {
	var (
		d   dataset.DatasetDict
		err error
	)
	switch dir := viper.GetString("train.data-dir"); {
	case dir != "":
		d, err = dataset.FileLoader{Dir: dir}.Load(ctx)
	case s.mode == modeDummy:
		d = dataset.Sample()
	default:
		l := dataset.NewHubLoader(client)
		l.DatasetID = datasetID
		if c := viper.GetString("train.dataset-config"); c != "" {
			l.Config = c
		}
		l.Limit = viper.GetInt("train.limit")
		d, err = l.Load(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if len(d[dataset.Train]) == 0 {
		return nil, apperr.User("dataset has no training examples")
	}
	return d, nil
}

// loadTokenizer downloads the base model's vocabulary, or builds one from
// the training texts in dummy mode.
func loadTokenizer(ctx context.Context, s settings, client *hub.Client, baseModel string, train dataset.Split) (*tokenizer.Tokenizer, error) {
	maxLength := viper.GetInt("train.max-length")
	if maxLength <= 0 {
		maxLength = tokenizer.DefaultMaxLength
	}
	if s.mode == modeDummy {
		return tokenizer.New(tokenizer.BuildVocab(train.Texts(), 1), maxLength)
	}
	cacheDir := viper.GetString("train.cache-dir")
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cacheDir = filepath.Join(base, "emotune")
	}
	return tokenizer.FromPretrained(ctx, client, baseModel, hub.DefaultRevision, cacheDir, maxLength)
}

func safeVocabSize(t *tokenizer.Tokenizer) int {
	if t == nil {
		return 0
	}
	return t.Vocab.Size()
}

func safeMaxLength(t *tokenizer.Tokenizer) int {
	if t == nil {
		return 0
	}
	return t.MaxLength
}

func init() {
	f := trainCmd.Flags()
	f.String("model", "", "Base model id on the hub (default distilbert-base-uncased)")
	f.String("dataset", "", "Dataset id on the hub (default emotion)")
	f.String("dataset-config", "", "Dataset config name (default split)")
	f.String("data-dir", "", "Load train/validation/test splits from local .jsonl or .csv files instead of the hub")
	f.Int("limit", 0, "Maximum rows per split to download (0 = all)")
	f.Bool("test", true, "Evaluate the test split after training")
	f.StringP("output-dir", "o", "", "Directory for checkpoints and the final model (default results)")
	f.String("cache-dir", "", "Cache directory for downloaded tokenizer files")
	f.Int("max-length", 0, "Padded sequence length (default 128)")
	f.Int("epochs", 0, "Number of training epochs (default 1)")
	f.Float64("learning-rate", 0, "Peak learning rate (default 2e-5)")
	f.Int("batch-size", 0, "Training batch size (default 16)")
	f.Int("eval-batch-size", 0, "Evaluation batch size (default 16)")
	f.Float64("weight-decay", 0.01, "AdamW weight decay")
	f.Int("warmup-steps", 0, "Linear warmup steps")
	f.String("eval-strategy", "", "When to evaluate: no|epoch|steps (default epoch)")
	f.Int("eval-steps", 0, "Evaluate every N steps with --eval-strategy steps")
	f.String("save-strategy", "", "When to save checkpoints: no|epoch|steps (default epoch)")
	f.Int("save-steps", 0, "Save every N steps with --save-strategy steps")
	f.Int("logging-steps", 0, "Record the training loss every N steps (default 50)")
	f.Uint64("seed", 42, "Random seed for initialization and shuffling")
	f.String("device", "", "Device to train on, e.g. cpu or cuda:0 (default cpu)")

	for _, name := range []string{"model", "dataset", "dataset-config", "data-dir", "limit", "test", "output-dir", "cache-dir", "max-length", "epochs", "learning-rate", "batch-size", "eval-batch-size", "weight-decay", "warmup-steps", "eval-strategy", "eval-steps", "save-strategy", "save-steps", "logging-steps", "seed", "device"} {
		viper.BindPFlag("train."+name, f.Lookup(name))
	}
}
