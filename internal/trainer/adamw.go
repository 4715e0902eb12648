package trainer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/emotune-cli/internal/model"
)

// adamW applies decoupled weight decay Adam updates. Bias terms are not
// decayed.
type adamW struct {
	beta1, beta2, eps, decay float64

	mW, vW *mat.Dense
	mB, vB *mat.VecDense
	t      int
}

func newAdamW(p *model.Params, a Arguments) *adamW {
	r, c := p.Shape()
	return &adamW{
		beta1: a.AdamBeta1, beta2: a.AdamBeta2, eps: a.AdamEpsilon, decay: a.WeightDecay,
		mW: mat.NewDense(r, c, nil), vW: mat.NewDense(r, c, nil),
		mB: mat.NewVecDense(r, nil), vB: mat.NewVecDense(r, nil),
	}
}

func (o *adamW) step(p *model.Params, g *model.Gradients, lr float64) {
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))

	o.update(p.W.RawMatrix().Data, g.W.RawMatrix().Data, o.mW.RawMatrix().Data, o.vW.RawMatrix().Data, lr, c1, c2, o.decay)
	o.update(p.B.RawVector().Data, g.B.RawVector().Data, o.mB.RawVector().Data, o.vB.RawVector().Data, lr, c1, c2, 0)
}

func (o *adamW) update(w, g, m, v []float64, lr, c1, c2, decay float64) {
	for i := range w {
		if decay != 0 {
			w[i] -= lr * decay * w[i]
		}
		m[i] = o.beta1*m[i] + (1-o.beta1)*g[i]
		v[i] = o.beta2*v[i] + (1-o.beta2)*g[i]*g[i]
		w[i] -= lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.eps)
	}
}

// linearSchedule warms up linearly for warmup steps, then decays linearly
// to zero at total.
func linearSchedule(base float64, step, warmup, total int) float64 {
	if warmup > 0 && step < warmup {
		return base * float64(step+1) / float64(warmup)
	}
	if total <= warmup {
		return base
	}
	frac := float64(total-step) / float64(total-warmup)
	return base * math.Max(frac, 0)
}
