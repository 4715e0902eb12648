package model

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
)

// Batch is a group of encodings of uniform length placed on Device.
// Labels is optional and only needed for loss and gradient computation.
type Batch struct {
	Device    device.Device
	Encodings []tokenizer.Encoding
	Labels    []int
}

// Size is the number of examples in the batch.
func (b Batch) Size() int { return len(b.Encodings) }

// Cache holds what Backward needs from a Forward pass. It is only recorded
// while gradients are enabled.
type Cache struct {
	features []map[int]float64
	logits   *mat.Dense
}

// Classifier couples a configuration with a parameter handle.
type Classifier struct {
	Config Config
	Params *Params

	mu     sync.Mutex
	noGrad bool
}

// New returns a freshly initialized classifier on the CPU.
func New(cfg Config, seed uint64) (*Classifier, error) {
	p, err := NewParams(cfg, seed)
	if err != nil {
		return nil, err
	}
	return &Classifier{Config: cfg, Params: p}, nil
}

// Snapshot returns a classifier over a clone of the parameters.
func (c *Classifier) Snapshot() *Classifier {
	return &Classifier{Config: c.Config, Params: c.Params.Clone()}
}

// GradEnabled reports whether Forward records a Cache.
func (c *Classifier) GradEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.noGrad
}

// NoGrad runs fn with gradient bookkeeping disabled. The previous state is
// restored when fn returns, fails or panics.
func (c *Classifier) NoGrad(fn func() error) error {
	c.mu.Lock()
	prev := c.noGrad
	c.noGrad = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.noGrad = prev
		c.mu.Unlock()
	}()
	return fn()
}

// Forward returns batch x labels logits. The returned Cache is nil when
// called inside NoGrad.
func (c *Classifier) Forward(b Batch) (*mat.Dense, *Cache, error) {
	if err := device.Check(c.Params.Device, b.Device); err != nil {
		return nil, nil, err
	}
	if b.Size() == 0 {
		return nil, nil, errors.New("forward: empty batch")
	}
	nl, vocab := c.Params.Shape()
	seqLen := len(b.Encodings[0].InputIDs)

	logits := mat.NewDense(b.Size(), nl, nil)
	features := make([]map[int]float64, b.Size())
	for i, enc := range b.Encodings {
		if len(enc.InputIDs) != seqLen {
			return nil, nil, fmt.Errorf("forward: example %d has length %d, batch uses %d", i, len(enc.InputIDs), seqLen)
		}
		f, err := pool(enc, vocab)
		if err != nil {
			return nil, nil, fmt.Errorf("forward: example %d: %w", i, err)
		}
		features[i] = f
		for k := 0; k < nl; k++ {
			v := c.Params.B.AtVec(k)
			for id, w := range f {
				v += c.Params.W.At(k, id) * w
			}
			logits.Set(i, k, v)
		}
	}

	if !c.GradEnabled() {
		return logits, nil, nil
	}
	return logits, &Cache{features: features, logits: logits}, nil
}

// pool is the masked mean over token ids, as a sparse feature vector.
func pool(enc tokenizer.Encoding, vocab int) (map[int]float64, error) {
	f := map[int]float64{}
	n := 0.0
	for j, id := range enc.InputIDs {
		if j < len(enc.AttentionMask) && enc.AttentionMask[j] == 0 {
			continue
		}
		if id < 0 || id >= vocab {
			return nil, fmt.Errorf("token id %d outside vocabulary of %d", id, vocab)
		}
		f[id]++
		n++
	}
	if n > 0 {
		for id := range f {
			f[id] /= n
		}
	}
	return f, nil
}

// Backward computes mean softmax cross-entropy and its gradients for the
// pass recorded in cache.
func (c *Classifier) Backward(cache *Cache, targets []int) (*Gradients, error) {
	if cache == nil {
		return nil, errors.New("backward: no cache recorded (forward ran under NoGrad)")
	}
	rows, nl := cache.logits.Dims()
	if len(targets) != rows {
		return nil, fmt.Errorf("backward: %d labels for batch of %d", len(targets), rows)
	}
	_, vocab := c.Params.Shape()
	g := &Gradients{
		W: mat.NewDense(nl, vocab, nil),
		B: mat.NewVecDense(nl, nil),
	}
	scale := 1 / float64(rows)
	for i := 0; i < rows; i++ {
		y := targets[i]
		if y < 0 || y >= nl {
			return nil, fmt.Errorf("backward: label %d outside [0,%d)", y, nl)
		}
		p := Softmax(cache.logits.RawRowView(i))
		g.Loss -= math.Log(math.Max(p[y], 1e-12)) * scale
		p[y] -= 1
		for k, d := range p {
			d *= scale
			g.B.SetVec(k, g.B.AtVec(k)+d)
			for id, w := range cache.features[i] {
				g.W.Set(k, id, g.W.At(k, id)+d*w)
			}
		}
	}
	return g, nil
}

// Loss is the mean cross-entropy of logits against targets.
func Loss(logits *mat.Dense, targets []int) (float64, error) {
	rows, nl := logits.Dims()
	if len(targets) != rows {
		return 0, fmt.Errorf("loss: %d labels for %d rows", len(targets), rows)
	}
	total := 0.0
	for i := 0; i < rows; i++ {
		if targets[i] < 0 || targets[i] >= nl {
			return 0, fmt.Errorf("loss: label %d outside [0,%d)", targets[i], nl)
		}
		row := logits.RawRowView(i)
		total += floats.LogSumExp(row) - row[targets[i]]
	}
	return total / float64(rows), nil
}

// Softmax returns a new slice of probabilities for one logit row.
func Softmax(row []float64) []float64 {
	out := make([]float64, len(row))
	lse := floats.LogSumExp(row)
	for i, v := range row {
		out[i] = math.Exp(v - lse)
	}
	return out
}
