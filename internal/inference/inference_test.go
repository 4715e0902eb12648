package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/labels"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
)

func joyBiasedRunner(t *testing.T) *Runner {
	t.Helper()
	tok, err := tokenizer.New(tokenizer.BuildVocab([]string{"i feel great", "this is awful"}, 1), 12)
	if err != nil {
		t.Fatal(err)
	}
	m, err := model.New(model.NewConfig("biased", tok.Vocab.Size(), 12, tok.PadID()), 3)
	if err != nil {
		t.Fatal(err)
	}
	m.Params.W.Zero()
	m.Params.B.SetVec(int(labels.Joy), 10)
	return NewRunner(tok, m, device.CPU)
}

func TestPredict_AlwaysJoy(t *testing.T) {
	r := joyBiasedRunner(t)
	sentences := []string{"I feel great", "this is awful", "", "words never seen before"}
	preds, err := r.Predict(context.Background(), sentences)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != len(sentences) {
		t.Fatalf("got %d predictions", len(preds))
	}
	for i, p := range preds {
		if p.Name != "joy" || p.Label != 1 {
			t.Errorf("sentence %q -> %s (%d), want joy", sentences[i], p.Name, p.Label)
		}
		if p.Text != sentences[i] {
			t.Errorf("prediction %d text %q, want %q", i, p.Text, sentences[i])
		}
		if p.Score <= 0.5 || p.Score > 1 {
			t.Errorf("score %v", p.Score)
		}
	}
	if !r.Model.GradEnabled() {
		t.Fatal("gradients not restored after Predict")
	}
}

func TestPredict_DeviceMismatch(t *testing.T) {
	r := joyBiasedRunner(t)
	r.Device = device.MustParse("cuda:0")
	_, err := r.Predict(context.Background(), []string{"hello"})
	if !errors.Is(err, device.ErrDeviceMismatch) {
		t.Fatalf("err = %v, want ErrDeviceMismatch", err)
	}
}

func TestPredict_Batches(t *testing.T) {
	r := joyBiasedRunner(t)
	r.BatchSize = 2
	preds, err := r.Predict(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 5 || preds[4].Text != "e" {
		t.Fatalf("preds = %+v", preds)
	}
}

func TestPredict_Cancelled(t *testing.T) {
	r := joyBiasedRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Predict(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
