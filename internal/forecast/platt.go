package forecast

import "math"

const (
	plattIterations = 200
	plattLR         = 0.4
	plattL2         = 0.01
	plattMinSamples = 20
)

// PlattModel is a per-timeframe logistic calibration σ(a·|x| + b)
// fitted on recent (|raw_score|, hit) pairs.
type PlattModel struct {
	A, B   float64
	Fitted bool
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// FitPlatt runs full-batch SGD over the sample set. With fewer than
// plattMinSamples pairs the model stays unfitted and Calibrate is a
// pass-through.
func FitPlatt(xs []float64, hits []int) PlattModel {
	if len(xs) < plattMinSamples || len(xs) != len(hits) {
		return PlattModel{}
	}
	a, b := 1.0, 0.0
	n := float64(len(xs))
	for iter := 0; iter < plattIterations; iter++ {
		gradA, gradB := 0.0, 0.0
		for i, x := range xs {
			p := sigmoid(a*x + b)
			err := p - float64(hits[i])
			gradA += err * x
			gradB += err
		}
		gradA = gradA/n + plattL2*a
		gradB = gradB/n + plattL2*b
		a -= plattLR * gradA
		b -= plattLR * gradB
	}
	return PlattModel{A: a, B: b, Fitted: true}
}

// Calibrate maps a base confidence through the fitted sigmoid. The
// input is |raw_score|; unfitted models return the base unchanged.
func (m PlattModel) Calibrate(absRaw, base float64) float64 {
	if !m.Fitted {
		return base
	}
	return sigmoid(m.A*absRaw + m.B)
}
