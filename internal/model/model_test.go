package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(NewConfig("test-base", 10, 4, 0), 42)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func enc(ids ...int) tokenizer.Encoding {
	e := tokenizer.Encoding{InputIDs: make([]int, 4), AttentionMask: make([]int, 4)}
	for i, id := range ids {
		e.InputIDs[i] = id
		e.AttentionMask[i] = 1
	}
	return e
}

func TestNew_Deterministic(t *testing.T) {
	a := testClassifier(t)
	b := testClassifier(t)
	if !mat.Equal(a.Params.W, b.Params.W) {
		t.Fatal("same seed produced different weights")
	}
	c, _ := New(NewConfig("test-base", 10, 4, 0), 7)
	if mat.Equal(a.Params.W, c.Params.W) {
		t.Fatal("different seeds produced identical weights")
	}
}

func TestForward_Shape(t *testing.T) {
	c := testClassifier(t)
	logits, cache, err := c.Forward(Batch{Encodings: []tokenizer.Encoding{enc(2, 5, 3), enc(2, 3)}})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	r, k := logits.Dims()
	if r != 2 || k != 6 {
		t.Fatalf("logits %dx%d, want 2x6", r, k)
	}
	if cache == nil {
		t.Fatal("expected cache with gradients enabled")
	}
}

func TestForward_IgnoresPadding(t *testing.T) {
	c := testClassifier(t)
	a := enc(2, 5, 3)
	b := enc(2, 5, 3)
	b.InputIDs[3] = 9 // masked out
	la, _, _ := c.Forward(Batch{Encodings: []tokenizer.Encoding{a}})
	lb, _, _ := c.Forward(Batch{Encodings: []tokenizer.Encoding{b}})
	if !mat.Equal(la, lb) {
		t.Fatal("masked token changed the logits")
	}
}

func TestForward_DeviceMismatch(t *testing.T) {
	c := testClassifier(t)
	_, _, err := c.Forward(Batch{Device: device.MustParse("cuda:0"), Encodings: []tokenizer.Encoding{enc(2, 3)}})
	if !errors.Is(err, device.ErrDeviceMismatch) {
		t.Fatalf("err = %v, want ErrDeviceMismatch", err)
	}
	var me *device.MismatchError
	if !errors.As(err, &me) || me.Input.Kind != "cuda" {
		t.Fatalf("err = %#v", err)
	}
}

func TestForward_RejectsRaggedBatch(t *testing.T) {
	c := testClassifier(t)
	short := tokenizer.Encoding{InputIDs: []int{2, 3}, AttentionMask: []int{1, 1}}
	if _, _, err := c.Forward(Batch{Encodings: []tokenizer.Encoding{enc(2, 3), short}}); err == nil {
		t.Fatal("expected error for non-uniform batch")
	}
}

func TestNoGrad(t *testing.T) {
	c := testClassifier(t)
	b := Batch{Encodings: []tokenizer.Encoding{enc(2, 3)}}

	t.Run("no cache inside scope", func(t *testing.T) {
		err := c.NoGrad(func() error {
			_, cache, err := c.Forward(b)
			if cache != nil {
				t.Error("cache recorded under NoGrad")
			}
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		if !c.GradEnabled() {
			t.Fatal("gradients not re-enabled")
		}
	})

	t.Run("restored on error", func(t *testing.T) {
		boom := errors.New("boom")
		if err := c.NoGrad(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if !c.GradEnabled() {
			t.Fatal("gradients not re-enabled after error")
		}
	})

	t.Run("restored on panic", func(t *testing.T) {
		func() {
			defer func() { _ = recover() }()
			_ = c.NoGrad(func() error { panic("boom") })
		}()
		if !c.GradEnabled() {
			t.Fatal("gradients not re-enabled after panic")
		}
	})

	t.Run("nested keeps outer state", func(t *testing.T) {
		_ = c.NoGrad(func() error {
			_ = c.NoGrad(func() error { return nil })
			if c.GradEnabled() {
				t.Error("inner scope re-enabled gradients")
			}
			return nil
		})
	})
}

func TestBackward_MatchesNumericGradient(t *testing.T) {
	c := testClassifier(t)
	b := Batch{Encodings: []tokenizer.Encoding{enc(2, 5, 3), enc(2, 7, 7, 3)}}
	targets := []int{1, 4}

	logits, cache, err := c.Forward(b)
	if err != nil {
		t.Fatal(err)
	}
	g, err := c.Backward(cache, targets)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := Loss(logits, targets)
	if math.Abs(g.Loss-want) > 1e-9 {
		t.Fatalf("Backward loss %v, Loss %v", g.Loss, want)
	}

	const h = 1e-6
	for _, at := range [][2]int{{1, 5}, {4, 7}, {0, 2}} {
		k, id := at[0], at[1]
		orig := c.Params.W.At(k, id)
		c.Params.W.Set(k, id, orig+h)
		lp, _, _ := c.Forward(b)
		up, _ := Loss(lp, targets)
		c.Params.W.Set(k, id, orig-h)
		lm, _, _ := c.Forward(b)
		down, _ := Loss(lm, targets)
		c.Params.W.Set(k, id, orig)

		num := (up - down) / (2 * h)
		if math.Abs(num-g.W.At(k, id)) > 1e-6 {
			t.Errorf("dW[%d,%d] = %v, numeric %v", k, id, g.W.At(k, id), num)
		}
	}
}

func TestBackward_RequiresCache(t *testing.T) {
	c := testClassifier(t)
	if _, err := c.Backward(nil, []int{0}); err == nil {
		t.Fatal("expected error without cache")
	}
}

func TestParams_CloneIsIndependent(t *testing.T) {
	c := testClassifier(t)
	snap := c.Snapshot()
	c.Params.W.Set(0, 0, 123)
	if snap.Params.W.At(0, 0) == 123 {
		t.Fatal("snapshot shares storage with the live parameters")
	}
}

func TestParams_To(t *testing.T) {
	c := testClassifier(t)
	if _, err := c.Params.To(device.MustParse("cuda")); !errors.Is(err, device.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	p, err := c.Params.To(device.CPU)
	if err != nil || !p.Device.Equal(device.CPU) {
		t.Fatalf("To(cpu) = %v, %v", p, err)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	c := testClassifier(t)
	if err := c.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !mat.Equal(loaded.Params.W, c.Params.W) || !mat.Equal(loaded.Params.B, c.Params.B) {
		t.Fatal("round trip changed parameters")
	}
	if loaded.Config.LabelName(1) != "joy" {
		t.Fatalf("LabelName(1) = %q", loaded.Config.LabelName(1))
	}
}

func TestLoad_ShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	c := testClassifier(t)
	if err := c.Save(dir); err != nil {
		t.Fatal(err)
	}
	cfg := c.Config
	cfg.VocabSize = 11
	if err := WriteConfig(dir, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestLoad_CorruptWeights(t *testing.T) {
	dir := t.TempDir()
	c := testClassifier(t)
	if err := c.Save(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, WeightsFile), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for corrupt weights")
	}
}
