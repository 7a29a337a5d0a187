package dbi

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qboost/internal/modules/quantum"
)

const (
	stepSearchLo      = 1e-4
	stepSearchHi      = 1.0
	stepSearchGrid    = 12
	stepSearchRefine  = 40
	stepSearchFlatTol = 1e-12
)

// searchStep picks the flow step in [stepSearchLo, stepSearchHi] that
// most contracts the off-diagonal norm after one conjugation. A
// log-spaced grid seeds a golden-section refinement around the best grid
// point. The fallback step is always among the candidates, so the result
// is never worse than it; when the landscape is flat the fallback is
// returned unchanged.
func (b *Booster) searchStep(m, generator *mat.Dense, fallback float64) float64 {
	baseNorm := quantum.OffDiagonalNorm(m)
	if baseNorm == 0 {
		return fallback
	}

	objective := func(s float64) float64 {
		var scaled mat.Dense
		scaled.Scale(s, generator)
		rotation, err := quantum.Expm(&scaled)
		if err != nil {
			return math.Inf(1)
		}
		return quantum.OffDiagonalNorm(conjugate(rotation, m))
	}

	bestS := fallback
	bestF := objective(fallback)
	bestIdx := -1

	grid := make([]float64, stepSearchGrid)
	ratio := math.Pow(stepSearchHi/stepSearchLo, 1/float64(stepSearchGrid-1))
	s := stepSearchLo
	for i := range grid {
		grid[i] = s
		if f := objective(s); f < bestF {
			bestS, bestF, bestIdx = s, f, i
		}
		s *= ratio
	}

	// Refine between the neighbors of the winning grid point.
	lo, hi := stepSearchLo, stepSearchHi
	if bestIdx > 0 {
		lo = grid[bestIdx-1]
	}
	if bestIdx >= 0 && bestIdx < stepSearchGrid-1 {
		hi = grid[bestIdx+1]
	}
	if refined, f := goldenSection(objective, lo, hi); f < bestF {
		bestS, bestF = refined, f
	}

	if baseNorm-bestF < stepSearchFlatTol*baseNorm {
		return fallback
	}
	return bestS
}

// goldenSection minimizes f on [lo, hi] and returns the best point seen
// together with its value.
func goldenSection(f func(float64) float64, lo, hi float64) (float64, float64) {
	invPhi := (math.Sqrt(5) - 1) / 2

	a, b := lo, hi
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := f(c), f(d)
	for i := 0; i < stepSearchRefine && b-a > 1e-8*(stepSearchHi-stepSearchLo); i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}
	if fc < fd {
		return c, fc
	}
	return d, fd
}
