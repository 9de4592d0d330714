// Package scoring computes the confidence used to gate and report answers.
package scoring

import "math"

// DefaultSignal is used for the signals that have no instrumentation yet.
const DefaultSignal = 0.85

// Signals are the inputs to a confidence computation.
type Signals struct {
	// ContextMatch is the externally supplied context-match strength in [0,1].
	ContextMatch float64
	// Complexity is a magnitude such as the serialized context size.
	Complexity float64
	// History, Pattern and Peer default to DefaultSignal when zero.
	History float64
	Pattern float64
	Peer    float64
}

// Scorer turns signals into a confidence in [0,1].
type Scorer interface {
	Score(s Signals) float64
}

// Weights for the linear scorer. ComplexityPenalty scales ln(complexity).
type Weights struct {
	Context           float64
	History           float64
	Pattern           float64
	Peer              float64
	ComplexityPenalty float64
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		Context:           0.35,
		History:           0.35,
		Pattern:           0.15,
		Peer:              0.10,
		ComplexityPenalty: 0.05,
	}
}

// Linear is a fixed weighted sum of the signals minus a log complexity penalty.
type Linear struct {
	W Weights
}

// NewLinear returns a Linear scorer with DefaultWeights.
func NewLinear() *Linear {
	return &Linear{W: DefaultWeights()}
}

// Score implements Scorer.
func (l *Linear) Score(s Signals) float64 {
	history := orDefault(s.History)
	pattern := orDefault(s.Pattern)
	peer := orDefault(s.Peer)

	v := l.W.Context*s.ContextMatch +
		l.W.History*history +
		l.W.Pattern*pattern +
		l.W.Peer*peer -
		l.W.ComplexityPenalty*math.Log(math.Max(1, s.Complexity))
	return Clamp(v)
}

func orDefault(v float64) float64 {
	if v == 0 {
		return DefaultSignal
	}
	return v
}

// Clamp limits v to [0,1].
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
