package vclock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rhizo/internal/vclock"
)

func TestIncrementDoesNotMutateOriginal(t *testing.T) {
	c := vclock.New()
	c2 := c.Increment("n1")

	assert.Equal(t, uint64(0), c.Get("n1"))
	assert.Equal(t, uint64(1), c2.Get("n1"))
}

func TestCompareEqual(t *testing.T) {
	a := vclock.New().Increment("n1").Increment("n2")
	b := a.Clone()
	assert.Equal(t, vclock.Equal, a.Compare(b))
}

func TestCompareBeforeAfter(t *testing.T) {
	a := vclock.New().Increment("n1")
	b := a.Increment("n1")

	assert.Equal(t, vclock.Before, a.Compare(b))
	assert.Equal(t, vclock.After, b.Compare(a))
	assert.True(t, a.HappensBefore(b))
}

func TestCompareConcurrent(t *testing.T) {
	base := vclock.New()
	a := base.Increment("n1")
	b := base.Increment("n2")

	assert.Equal(t, vclock.Concurrent, a.Compare(b))
}

func TestMergeTakesElementwiseMax(t *testing.T) {
	a := vclock.New()
	a["n1"] = 3
	a["n2"] = 1
	b := vclock.New()
	b["n1"] = 1
	b["n2"] = 5
	b["n3"] = 2

	merged := a.Merge(b)
	assert.Equal(t, uint64(3), merged.Get("n1"))
	assert.Equal(t, uint64(5), merged.Get("n2"))
	assert.Equal(t, uint64(2), merged.Get("n3"))
}

func TestFingerprintStableUnderKeyOrder(t *testing.T) {
	a := vclock.New()
	a["n2"] = 1
	a["n1"] = 2

	b := vclock.New()
	b["n1"] = 2
	b["n2"] = 1

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintDiffersOnDivergence(t *testing.T) {
	a := vclock.New().Increment("n1")
	b := vclock.New().Increment("n2")
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
