// internal/engine/sampling_test.go
package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/mwiater/paragon/internal/enginefile"
)

func testCandidates() []enginefile.Candidate {
	return []enginefile.Candidate{
		{ID: 10, Score: 5},
		{ID: 11, Score: 3},
		{ID: 12, Score: 1},
	}
}

func TestSamplingValidate(t *testing.T) {
	t.Parallel()

	if err := (Sampling{TopK: 1, TopP: 0, Temperature: 1}).validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Sampling{TopK: -1}).validate(); err == nil {
		t.Error("expected error for negative top_k")
	}
	if err := (Sampling{TopP: 1.5}).validate(); err == nil {
		t.Error("expected error for top_p above 1")
	}
}

func TestSampleGreedyTakesBestCandidate(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	got := sample(testCandidates(), Sampling{TopK: 1, Temperature: 1}, rng)
	if got.ID != 10 {
		t.Fatalf("expected argmax id 10, got %d", got.ID)
	}
	got = sample(testCandidates(), Sampling{TopK: 0, Temperature: 0}, rng)
	if got.ID != 10 {
		t.Fatalf("expected zero temperature to act as argmax, got %d", got.ID)
	}
}

func TestSampleTopKRestrictsCandidates(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		got := sample(testCandidates(), Sampling{TopK: 2, Temperature: 1}, rng)
		if got.ID == 12 {
			t.Fatal("top_k 2 drew a candidate outside the prefix")
		}
	}
}

func TestSampleTopPKeepsDominantCandidate(t *testing.T) {
	t.Parallel()

	candidates := []enginefile.Candidate{
		{ID: 1, Score: 100},
		{ID: 2, Score: 0},
		{ID: 3, Score: 0},
	}
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 200; i++ {
		got := sample(candidates, Sampling{TopK: 0, TopP: 0.5, Temperature: 1}, rng)
		if got.ID != 1 {
			t.Fatalf("nucleus of one candidate drew id %d", got.ID)
		}
	}
}

func TestSampleSeededRepeatability(t *testing.T) {
	t.Parallel()

	draw := func() []uint32 {
		rng := rand.New(rand.NewSource(42))
		var ids []uint32
		for i := 0; i < 20; i++ {
			ids = append(ids, sample(testCandidates(), Sampling{TopK: 3, TopP: 0.99, Temperature: 0.8}, rng).ID)
		}
		return ids
	}
	first, second := draw(), draw()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("draw %d diverged: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	t.Parallel()

	probs := softmax(testCandidates(), 0.7)
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("softmax sums to %g", sum)
	}
	if !(probs[0] > probs[1] && probs[1] > probs[2]) {
		t.Fatalf("softmax is not monotonic in score: %v", probs)
	}
}
