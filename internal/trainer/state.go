package trainer

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/idlab-discover/emotune-cli/internal/metrics"
)

// Checkpoint file names.
const (
	StateFile = "trainer_state.json"
	ArgsFile  = "training_args.json"
)

// LogEntry is one element of trainer_state.json log_history.
type LogEntry struct {
	Epoch        float64  `json:"epoch"`
	Step         int      `json:"step"`
	Loss         float64  `json:"loss,omitempty"`
	LearningRate float64  `json:"learning_rate,omitempty"`
	EvalLoss     *float64 `json:"eval_loss,omitempty"`
	EvalAccuracy *float64 `json:"eval_accuracy,omitempty"`
	EvalRuntime  float64  `json:"eval_runtime,omitempty"`
	EvalSamples  int      `json:"eval_samples,omitempty"`
	TrainLoss    float64  `json:"train_loss,omitempty"`
	TrainRuntime float64  `json:"train_runtime,omitempty"`
}

// State is persisted as trainer_state.json in every checkpoint.
type State struct {
	Epoch               float64    `json:"epoch"`
	GlobalStep          int        `json:"global_step"`
	MaxSteps            int        `json:"max_steps"`
	NumTrainEpochs      int        `json:"num_train_epochs"`
	TrainBatchSize      int        `json:"train_batch_size"`
	LoggingSteps        int        `json:"logging_steps"`
	EvalSteps           int        `json:"eval_steps"`
	SaveSteps           int        `json:"save_steps"`
	BestMetric          *float64   `json:"best_metric"`
	BestModelCheckpoint string     `json:"best_model_checkpoint"`
	LogHistory          []LogEntry `json:"log_history"`

	// Hardware and Software describe the host that trained the model.
	Hardware string `json:"hardware,omitempty"`
	Software string `json:"software,omitempty"`

	bestStep int
}

func (s *State) observe(r metrics.EvalResult) {
	if s.BestMetric == nil || r.Accuracy > *s.BestMetric {
		acc := r.Accuracy
		s.BestMetric = &acc
		s.bestStep = r.Step
	}
}

// ReadState loads trainer_state.json from a checkpoint directory.
func ReadState(dir string) (State, error) {
	var s State
	b, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", StateFile, err)
	}
	return s, nil
}

// CheckpointDir is <output>/checkpoint-<step>.
func CheckpointDir(outputDir string, step int) string {
	return filepath.Join(outputDir, fmt.Sprintf("checkpoint-%d", step))
}

// SaveCheckpoint writes model, tokenizer, state and arguments for step.
func (t *Trainer) SaveCheckpoint(step int) (string, error) {
	dir := CheckpointDir(t.Args.OutputDir, step)
	if err := t.saveAll(dir); err != nil {
		return "", fmt.Errorf("save checkpoint %d: %w", step, err)
	}
	logf(t.Model.Config.BaseModel, "saved checkpoint %s", dir)
	return dir, nil
}

// SaveFinal writes the trained model with its state and arguments directly
// into the output directory, which can then be evaluated or published like
// any checkpoint.
func (t *Trainer) SaveFinal() (string, error) {
	dir := t.Args.OutputDir
	if err := t.saveAll(dir); err != nil {
		return "", fmt.Errorf("save final model: %w", err)
	}
	logf(t.Model.Config.BaseModel, "saved final model to %s", dir)
	return dir, nil
}

func (t *Trainer) saveAll(dir string) error {
	if err := t.SaveModel(dir); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, StateFile), t.state); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, ArgsFile), t.Args)
}

// SaveModel writes the model and tokenizer files into dir.
func (t *Trainer) SaveModel(dir string) error {
	if err := t.Model.Save(dir); err != nil {
		return err
	}
	return t.Tokenizer.Save(dir)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func shuffledIndices(n int, seed uint64) []int {
	r := rand.New(rand.NewPCG(seed, seed))
	return r.Perm(n)
}

// ReadArguments loads training_args.json from a checkpoint directory.
func ReadArguments(dir string) (Arguments, error) {
	a := DefaultArguments()
	b, err := os.ReadFile(filepath.Join(dir, ArgsFile))
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return a, fmt.Errorf("parse %s: %w", ArgsFile, err)
	}
	return a, nil
}
