package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/idlab-discover/emotune-cli/internal/device"
)

// Params is a handle to the trainable tensors and their placement.
// W is NumLabels x VocabSize, B has NumLabels entries.
type Params struct {
	W      *mat.Dense
	B      *mat.VecDense
	Device device.Device
}

// NewParams allocates parameters for cfg with weights drawn from
// N(0, cfg.InitRange) using a seeded source, and zero bias.
func NewParams(cfg Config, seed uint64) (*Params, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sigma := cfg.InitRange
	if sigma <= 0 {
		sigma = 0.02
	}
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	data := make([]float64, cfg.NumLabels*cfg.VocabSize)
	for i := range data {
		data[i] = dist.Rand()
	}
	return &Params{
		W:      mat.NewDense(cfg.NumLabels, cfg.VocabSize, data),
		B:      mat.NewVecDense(cfg.NumLabels, nil),
		Device: device.CPU,
	}, nil
}

// Shape returns (labels, vocab).
func (p *Params) Shape() (int, int) { return p.W.Dims() }

// Clone returns an independent copy. Training mutates its own Params while
// evaluation and inference read from clones.
func (p *Params) Clone() *Params {
	return &Params{
		W:      mat.DenseCopyOf(p.W),
		B:      mat.VecDenseCopyOf(p.B),
		Device: p.Device,
	}
}

// To returns a copy placed on d. Only registered backends are accepted.
func (p *Params) To(d device.Device) (*Params, error) {
	if !device.Available(d) {
		return nil, fmt.Errorf("move parameters to %s: %w", d, device.ErrDeviceUnavailable)
	}
	c := p.Clone()
	c.Device = d
	return c, nil
}

// Gradients mirror Params and carry the batch loss they were computed from.
type Gradients struct {
	W    *mat.Dense
	B    *mat.VecDense
	Loss float64
}
