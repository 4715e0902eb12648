package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
	"github.com/idlab-discover/emotune-cli/internal/labels"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/modelcard"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
	"github.com/idlab-discover/emotune-cli/internal/trainer"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

// loadCheckpoint reads the model and tokenizer saved in dir.
func loadCheckpoint(dir string) (*model.Classifier, *tokenizer.Tokenizer, error) {
	if _, err := os.Stat(filepath.Join(dir, model.WeightsFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, apperr.Userf("%s is not a checkpoint (no %s)", dir, model.WeightsFile)
		}
		return nil, nil, err
	}
	m, err := model.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	tok, err := tokenizer.Load(dir, m.Config.MaxLength)
	if err != nil {
		return nil, nil, fmt.Errorf("load tokenizer from %s: %w", dir, err)
	}
	return m, tok, nil
}

// listCheckpoints returns outputDir itself (when it holds a final model)
// followed by its checkpoint-N directories in step order.
func listCheckpoints(outputDir string) ([]ui.CheckpointOption, error) {
	var dirs []string
	if _, err := os.Stat(filepath.Join(outputDir, model.WeightsFile)); err == nil {
		dirs = append(dirs, outputDir)
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}
	var steps []int
	for _, e := range entries {
		n, ok := strings.CutPrefix(e.Name(), "checkpoint-")
		if !e.IsDir() || !ok {
			continue
		}
		if step, err := strconv.Atoi(n); err == nil {
			steps = append(steps, step)
		}
	}
	sort.Ints(steps)
	for _, s := range steps {
		dirs = append(dirs, trainer.CheckpointDir(outputDir, s))
	}

	var best string
	opts := make([]ui.CheckpointOption, 0, len(dirs))
	for _, d := range dirs {
		opt := ui.CheckpointOption{Path: d}
		if st, err := trainer.ReadState(d); err == nil {
			opt.Step, opt.Epoch = st.GlobalStep, st.Epoch
			if e := lastEval(st); e != nil {
				opt.Accuracy = e.EvalAccuracy
			}
			if st.BestModelCheckpoint != "" {
				best = st.BestModelCheckpoint
			}
		}
		opts = append(opts, opt)
	}
	for i := range opts {
		opts[i].Best = best != "" && filepath.Clean(opts[i].Path) == filepath.Clean(best)
	}
	return opts, nil
}

// resolveCheckpoint returns dir, or lets the user pick one of the
// checkpoints under outputDir when interactive.
func resolveCheckpoint(dir, outputDir string, interactive bool) (string, error) {
	if !interactive {
		if dir == "" {
			dir = outputDir
		}
		return dir, nil
	}
	opts, err := listCheckpoints(outputDir)
	if err != nil {
		return "", err
	}
	return ui.SelectCheckpoint("Select a checkpoint", opts)
}

func lastEval(st trainer.State) *trainer.LogEntry {
	for i := len(st.LogHistory) - 1; i >= 0; i-- {
		if st.LogHistory[i].EvalAccuracy != nil {
			return &st.LogHistory[i]
		}
	}
	return nil
}

// cardData assembles the model card of the checkpoint in dir. Everything,
// including the training host, is read from files in dir, so the same
// checkpoint yields the same card on any machine.
func cardData(dir, modelID, datasetID, datasetConfig string) (modelcard.Data, error) {
	cfg, err := model.ReadConfig(dir)
	if err != nil {
		return modelcard.Data{}, err
	}
	arch := model.Architecture
	if len(cfg.Architectures) > 0 {
		arch = cfg.Architectures[0]
	}
	d := modelcard.Data{
		ModelID:       modelID,
		BaseModel:     cfg.BaseModel,
		Architecture:  arch,
		Dataset:       datasetID,
		DatasetConfig: datasetConfig,
		Labels:        labels.Names[:],
	}

	if args, err := trainer.ReadArguments(dir); err == nil {
		d.Hyperparameters = hyperparameters(args)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return d, err
	}
	if st, err := trainer.ReadState(dir); err == nil {
		d.Hardware, d.Software = st.Hardware, st.Software
		if e := lastEval(st); e != nil && e.EvalLoss != nil {
			d.Results = append(d.Results, modelcard.Result{
				Split:    "validation",
				Loss:     *e.EvalLoss,
				Accuracy: *e.EvalAccuracy,
				Samples:  e.EvalSamples,
			})
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return d, err
	}

	if d.Hardware == "" {
		d.Hardware = notRecorded
	}
	if d.Software == "" {
		d.Software = notRecorded
	}
	return d.Defaults(), nil
}

const notRecorded = "not recorded"

func hyperparameters(a trainer.Arguments) []modelcard.Hyperparameter {
	return []modelcard.Hyperparameter{
		{Name: "learning_rate", Value: strconv.FormatFloat(a.LearningRate, 'g', -1, 64)},
		{Name: "train_batch_size", Value: strconv.Itoa(a.TrainBatchSize)},
		{Name: "eval_batch_size", Value: strconv.Itoa(a.EvalBatchSize)},
		{Name: "seed", Value: strconv.FormatUint(a.Seed, 10)},
		{Name: "optimizer", Value: fmt.Sprintf("AdamW with betas=(%g,%g) and epsilon=%g", a.AdamBeta1, a.AdamBeta2, a.AdamEpsilon)},
		{Name: "weight_decay", Value: strconv.FormatFloat(a.WeightDecay, 'g', -1, 64)},
		{Name: "lr_scheduler_type", Value: "linear"},
		{Name: "lr_scheduler_warmup_steps", Value: strconv.Itoa(a.WarmupSteps)},
		{Name: "num_epochs", Value: strconv.Itoa(a.Epochs)},
	}
}
