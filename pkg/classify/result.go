package classify

import (
	"github.com/chewxy/math32"
)

// Result is one classification outcome. Scores always form a probability
// simplex: non-negative, summing to 1 within floating point tolerance.
// Label is the argmax class and Confidence its probability.
type Result struct {
	Label      string
	Confidence float32
	Scores     map[string]float32
}

// Score returns the probability of a class, or 0 for an unknown class.
func (r *Result) Score(class string) float32 {
	return r.Scores[class]
}

// Softmax converts a logit vector into a probability vector. The max is
// subtracted first for numerical stability.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float32, len(logits))
	sum := float32(0)
	for i, v := range logits {
		out[i] = math32.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// deriveResult builds a Result from a probability vector.
// classes and probs must be the same length.
func deriveResult(classes []string, probs []float32) *Result {
	scores := make(map[string]float32, len(classes))
	maxIdx := 0
	for i, p := range probs {
		scores[classes[i]] = p
		if p > probs[maxIdx] {
			maxIdx = i
		}
	}
	return &Result{
		Label:      classes[maxIdx],
		Confidence: probs[maxIdx],
		Scores:     scores,
	}
}
