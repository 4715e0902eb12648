// Package trainer runs the mini-batch optimization loop with periodic
// evaluation and checkpointing.
package trainer

import (
	"fmt"
	"strings"

	"github.com/idlab-discover/emotune-cli/internal/device"
)

// Strategy selects when evaluation or saving happens.
type Strategy string

const (
	StrategyNo    Strategy = "no"
	StrategyEpoch Strategy = "epoch"
	StrategySteps Strategy = "steps"
)

// ParseStrategy accepts "no", "epoch" or "steps".
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyNo, StrategyEpoch, StrategySteps:
		return st, nil
	case "":
		return StrategyEpoch, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want no, epoch or steps)", s)
}

// Arguments configures a training run. Field names follow their
// training_args.json keys.
type Arguments struct {
	OutputDir      string        `json:"output_dir"`
	LearningRate   float64       `json:"learning_rate"`
	TrainBatchSize int           `json:"per_device_train_batch_size"`
	EvalBatchSize  int           `json:"per_device_eval_batch_size"`
	Epochs         int           `json:"num_train_epochs"`
	WeightDecay    float64       `json:"weight_decay"`
	EvalStrategy   Strategy      `json:"evaluation_strategy"`
	EvalSteps      int           `json:"eval_steps"`
	SaveStrategy   Strategy      `json:"save_strategy"`
	SaveSteps      int           `json:"save_steps"`
	LoggingSteps   int           `json:"logging_steps"`
	WarmupSteps    int           `json:"warmup_steps"`
	Seed           uint64        `json:"seed"`
	AdamBeta1      float64       `json:"adam_beta1"`
	AdamBeta2      float64       `json:"adam_beta2"`
	AdamEpsilon    float64       `json:"adam_epsilon"`
	Device         device.Device `json:"-"`
}

// DefaultArguments mirrors the reference fine-tuning recipe.
func DefaultArguments() Arguments {
	return Arguments{
		OutputDir:      "results",
		LearningRate:   2e-5,
		TrainBatchSize: 16,
		EvalBatchSize:  16,
		Epochs:         1,
		WeightDecay:    0.01,
		EvalStrategy:   StrategyEpoch,
		SaveStrategy:   StrategyEpoch,
		LoggingSteps:   50,
		Seed:           42,
		AdamBeta1:      0.9,
		AdamBeta2:      0.999,
		AdamEpsilon:    1e-8,
		Device:         device.CPU,
	}
}

// Validate rejects arguments the loop cannot run with.
func (a Arguments) Validate() error {
	switch {
	case a.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %g", a.LearningRate)
	case a.TrainBatchSize <= 0 || a.EvalBatchSize <= 0:
		return fmt.Errorf("batch sizes must be positive, got train=%d eval=%d", a.TrainBatchSize, a.EvalBatchSize)
	case a.Epochs <= 0:
		return fmt.Errorf("epochs must be positive, got %d", a.Epochs)
	case a.WeightDecay < 0:
		return fmt.Errorf("weight decay must not be negative, got %g", a.WeightDecay)
	case a.EvalStrategy == StrategySteps && a.EvalSteps <= 0:
		return fmt.Errorf("evaluation strategy steps needs eval_steps > 0")
	case a.SaveStrategy == StrategySteps && a.SaveSteps <= 0:
		return fmt.Errorf("save strategy steps needs save_steps > 0")
	}
	return nil
}
