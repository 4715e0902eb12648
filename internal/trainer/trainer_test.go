package trainer

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
)

func setup(t *testing.T, args Arguments) *Trainer {
	t.Helper()
	d := dataset.Sample()
	tok, err := tokenizer.New(tokenizer.BuildVocab(d[dataset.Train].Texts(), 1), 16)
	if err != nil {
		t.Fatal(err)
	}
	m, err := model.New(model.NewConfig("sample", tok.Vocab.Size(), tok.MaxLength, tok.PadID()), 1)
	if err != nil {
		t.Fatal(err)
	}
	if args.OutputDir == "" {
		args.OutputDir = t.TempDir()
	}
	tr, err := New(args, m, tok, d[dataset.Train], d[dataset.Validation])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func fastArgs() Arguments {
	a := DefaultArguments()
	a.LearningRate = 0.05
	a.TrainBatchSize = 8
	a.Epochs = 20
	a.WeightDecay = 0
	a.EvalStrategy = StrategyNo
	a.SaveStrategy = StrategyNo
	a.LoggingSteps = 5
	return a
}

func TestTrain_LearnsSample(t *testing.T) {
	args := fastArgs()
	args.LearningRate = 0.1
	args.Epochs = 30
	tr := setup(t, args)

	before, err := tr.Evaluate(context.Background(), tr.TrainSet)
	if err != nil {
		t.Fatal(err)
	}
	res, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	after, err := tr.Evaluate(context.Background(), tr.TrainSet)
	if err != nil {
		t.Fatal(err)
	}

	if after.Loss >= before.Loss {
		t.Fatalf("loss did not decrease: %.4f -> %.4f", before.Loss, after.Loss)
	}
	if after.Accuracy < 0.9 {
		t.Fatalf("train accuracy %.2f, want >= 0.9", after.Accuracy)
	}
	wantSteps := 30 * stepsPerEpoch(len(tr.TrainSet), 8)
	if res.GlobalStep != wantSteps {
		t.Fatalf("GlobalStep = %d, want %d", res.GlobalStep, wantSteps)
	}
	if len(res.State.LogHistory) == 0 {
		t.Fatal("no log history recorded")
	}
}

func TestTrain_EvaluatesAndSavesPerEpoch(t *testing.T) {
	args := fastArgs()
	args.Epochs = 2
	args.EvalStrategy = StrategyEpoch
	args.SaveStrategy = StrategyEpoch
	tr := setup(t, args)

	var events []ProgressEvent
	tr.OnProgress = func(ev ProgressEvent) {
		if ev.Kind != EventStep {
			events = append(events, ev)
		}
	}
	res, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(res.Evaluations) != 2 || len(res.Checkpoints) != 2 {
		t.Fatalf("evaluations=%d checkpoints=%d, want 2 each", len(res.Evaluations), len(res.Checkpoints))
	}

	perEpoch := stepsPerEpoch(len(tr.TrainSet), args.TrainBatchSize)
	last := CheckpointDir(args.OutputDir, 2*perEpoch)
	if res.Checkpoints[1] != last {
		t.Fatalf("checkpoint = %s, want %s", res.Checkpoints[1], last)
	}
	for _, f := range []string{model.WeightsFile, model.ConfigFile, StateFile, ArgsFile, tokenizer.VocabFile} {
		if _, err := os.Stat(filepath.Join(last, f)); err != nil {
			t.Errorf("checkpoint missing %s: %v", f, err)
		}
	}

	st, err := ReadState(last)
	if err != nil {
		t.Fatal(err)
	}
	if st.GlobalStep != 2*perEpoch || st.BestMetric == nil {
		t.Fatalf("state = %+v", st)
	}
	best := res.State.BestModelCheckpoint
	if best == "" {
		t.Fatal("no best checkpoint recorded")
	}
	bestState, err := ReadState(best)
	if err != nil {
		t.Fatal(err)
	}
	if bestState.BestModelCheckpoint != best {
		t.Fatalf("%s/%s names %q as best, want itself", best, StateFile, bestState.BestModelCheckpoint)
	}

	loaded, err := model.Load(last)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if loaded.Config.VocabSize != tr.Model.Config.VocabSize {
		t.Fatal("checkpoint config differs")
	}

	var kinds []EventKind
	for _, ev := range events {
		if ev.Kind == EventEval || ev.Kind == EventSave {
			kinds = append(kinds, ev.Kind)
		}
	}
	want := []EventKind{EventEval, EventSave, EventEval, EventSave}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
}

func TestSaveFinal(t *testing.T) {
	args := fastArgs()
	args.Epochs = 1
	tr := setup(t, args)
	tr.Hardware, tr.Software = "Test CPU, 4 logical cores", "go1.25 linux/amd64"
	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatal(err)
	}
	dir, err := tr.SaveFinal()
	if err != nil {
		t.Fatalf("SaveFinal: %v", err)
	}
	if dir != args.OutputDir {
		t.Fatalf("dir = %s, want %s", dir, args.OutputDir)
	}
	got, err := ReadArguments(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.TrainBatchSize != args.TrainBatchSize || got.Seed != args.Seed {
		t.Fatalf("arguments = %+v", got)
	}
	st, err := ReadState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if st.GlobalStep != stepsPerEpoch(len(tr.TrainSet), args.TrainBatchSize) {
		t.Fatalf("GlobalStep = %d", st.GlobalStep)
	}
	if st.Hardware != tr.Hardware || st.Software != tr.Software {
		t.Fatalf("host = %q / %q", st.Hardware, st.Software)
	}
}

func TestTrain_Cancelled(t *testing.T) {
	args := fastArgs()
	args.SaveStrategy = StrategySteps
	args.SaveSteps = 2
	tr := setup(t, args)

	ctx, cancel := context.WithCancel(context.Background())
	tr.OnProgress = func(ev ProgressEvent) {
		if ev.Kind == EventSave {
			cancel()
		}
	}
	res, err := tr.Train(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.GlobalStep != 2 || len(res.Checkpoints) != 1 {
		t.Fatalf("step=%d checkpoints=%v", res.GlobalStep, res.Checkpoints)
	}
	if _, err := os.Stat(res.Checkpoints[0]); err != nil {
		t.Fatalf("checkpoint removed after cancel: %v", err)
	}
}

func TestEvaluate_DoesNotTouchLiveGradState(t *testing.T) {
	tr := setup(t, fastArgs())
	if _, err := tr.Evaluate(context.Background(), tr.EvalSet); err != nil {
		t.Fatal(err)
	}
	if !tr.Model.GradEnabled() {
		t.Fatal("evaluation disabled gradients on the live model")
	}
}

func TestPredict(t *testing.T) {
	tr := setup(t, fastArgs())
	out, err := tr.Predict(context.Background(), tr.EvalSet)
	if err != nil {
		t.Fatal(err)
	}
	r, c := out.Logits.Dims()
	if r != len(tr.EvalSet) || c != 6 || len(out.Predictions) != r {
		t.Fatalf("logits %dx%d predictions %d", r, c, len(out.Predictions))
	}
	if out.Metrics.Accuracy < 0 || out.Metrics.Accuracy > 1 {
		t.Fatalf("accuracy %v", out.Metrics.Accuracy)
	}

	empty, err := tr.Predict(context.Background(), nil)
	if err != nil || empty.Metrics.Samples != 0 || empty.Metrics.Accuracy != 0 {
		t.Fatalf("empty predict = %+v, %v", empty, err)
	}
}

func TestNew_Validation(t *testing.T) {
	d := dataset.Sample()
	tok, _ := tokenizer.New(tokenizer.BuildVocab(d[dataset.Train].Texts(), 1), 16)
	m, _ := model.New(model.NewConfig("sample", tok.Vocab.Size()+1, 16, 0), 1)

	if _, err := New(DefaultArguments(), m, tok, d[dataset.Train], nil); err == nil {
		t.Fatal("expected vocabulary size mismatch")
	}
	bad := DefaultArguments()
	bad.LearningRate = 0
	if _, err := New(bad, m, tok, d[dataset.Train], nil); err == nil {
		t.Fatal("expected invalid learning rate")
	}
	gpu := DefaultArguments()
	gpu.Device = device.MustParse("cuda:0")
	m2, _ := model.New(model.NewConfig("sample", tok.Vocab.Size(), 16, 0), 1)
	if _, err := New(gpu, m2, tok, d[dataset.Train], nil); !errors.Is(err, device.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestLinearSchedule(t *testing.T) {
	tests := []struct {
		step, warmup, total int
		want                float64
	}{
		{0, 0, 10, 1},
		{5, 0, 10, 0.5},
		{9, 0, 10, 0.1},
		{0, 4, 12, 0.25},
		{4, 4, 12, 1},
		{8, 4, 12, 0.5},
	}
	for _, tt := range tests {
		if got := linearSchedule(1, tt.step, tt.warmup, tt.total); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("linearSchedule(step=%d, warmup=%d, total=%d) = %v, want %v", tt.step, tt.warmup, tt.total, got, tt.want)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy("Steps"); err != nil || s != StrategySteps {
		t.Fatalf("ParseStrategy(Steps) = %q, %v", s, err)
	}
	if s, _ := ParseStrategy(""); s != StrategyEpoch {
		t.Fatalf("empty strategy = %q", s)
	}
	if _, err := ParseStrategy("sometimes"); err == nil {
		t.Fatal("expected error")
	}
}
