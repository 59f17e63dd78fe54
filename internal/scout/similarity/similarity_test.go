package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaccard_SelfAndEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard("housing assistance Minneapolis", "housing assistance Minneapolis"))
	assert.Equal(t, 0.0, Jaccard("", ""))
	assert.Equal(t, Jaccard("a b", "b c"), Jaccard("b c", "a b"))
}

func TestJaccard_PartialOverlapCrossesExpansionThreshold(t *testing.T) {
	a := "housing assistance programs Minneapolis"
	b := "housing assistance resources Minneapolis"
	got := Jaccard(a, b)
	assert.GreaterOrEqual(t, got, 0.6, "expansion-dedup scenario expects Jaccard >= 0.6")
}

func TestCosine_IdenticalVectorIsOne(t *testing.T) {
	v := []float32{0.1, 0.2, 0.3, 0.4}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosine_ZeroVectorIsZero(t *testing.T) {
	zero := []float32{0, 0, 0}
	v := []float32{1, 2, 3}
	assert.Equal(t, 0.0, Cosine(zero, v))
}

func TestConfidenceWeight(t *testing.T) {
	assert.InDelta(t, 0.5, ConfidenceWeight(1.0, 0.25), 1e-9)
}
