// internal/engine/sampling.go
package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mwiater/paragon/internal/enginefile"
	"github.com/mwiater/paragon/internal/util"
)

// Sampling selects how the next token is drawn from a candidate set.
// TopK 1 is deterministic argmax. TopP 0 disables nucleus filtering.
// A Temperature of 0 (or below) also forces argmax. Seed below 0 asks for
// a randomized seed.
type Sampling struct {
	TopK        int
	TopP        float64
	Temperature float64
	Seed        int64
}

func (s Sampling) validate() error {
	if s.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", s.TopK)
	}
	if s.TopP < 0 || s.TopP > 1 {
		return fmt.Errorf("top_p must be within [0, 1], got %g", s.TopP)
	}
	return nil
}

// greedy reports whether sampling collapses to taking the best candidate.
func (s Sampling) greedy() bool {
	return s.TopK == 1 || s.Temperature <= 0
}

// sample draws one candidate. Candidates arrive best-first from the table,
// so argmax is the first entry and top-k keeps a prefix.
func sample(candidates []enginefile.Candidate, s Sampling, rng *rand.Rand) enginefile.Candidate {
	if s.greedy() || len(candidates) == 1 {
		return candidates[0]
	}

	kept := candidates
	if s.TopK > 0 {
		kept = kept[:util.Min(s.TopK, len(kept))]
	}

	probs := softmax(kept, s.Temperature)
	if s.TopP > 0 {
		cut := len(probs)
		sum := 0.0
		for i, p := range probs {
			sum += p
			if sum >= s.TopP {
				cut = i + 1
				break
			}
		}
		kept = kept[:cut]
		probs = renormalize(probs[:cut])
	}

	draw := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if draw < acc {
			return kept[i]
		}
	}
	return kept[len(kept)-1]
}

// softmax turns scores into probabilities at the given temperature.
// Scores are shifted by their maximum first so the exponentials stay finite.
func softmax(candidates []enginefile.Candidate, temperature float64) []float64 {
	maxScore := float64(candidates[0].Score)
	for _, c := range candidates[1:] {
		if float64(c.Score) > maxScore {
			maxScore = float64(c.Score)
		}
	}

	probs := make([]float64, len(candidates))
	sum := 0.0
	for i, c := range candidates {
		p := math.Exp((float64(c.Score) - maxScore) / temperature)
		probs[i] = p
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func renormalize(probs []float64) []float64 {
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
