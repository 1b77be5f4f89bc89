package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitMatchesFiveNodeExample(t *testing.T) {
	a, b := Split(5)
	assert.Equal(t, []int{0, 1}, a)
	assert.Equal(t, []int{2, 3, 4}, b)
}

func TestDelayWithinBounds(t *testing.T) {
	c := NewDelayController(42, []int{1, 2})
	for i := 0; i < 100; i++ {
		d := c.Delay(1)
		assert.GreaterOrEqual(t, d, DelayMin)
		assert.LessOrEqual(t, d, DelayMax)
	}
	assert.False(t, c.ShouldDrop(1))
}

func TestDelayDeterministicForSameSeed(t *testing.T) {
	c1 := NewDelayController(42, []int{1})
	c2 := NewDelayController(42, []int{1})

	for i := 0; i < 10; i++ {
		assert.Equal(t, c1.Delay(1), c2.Delay(1))
	}
}

func TestPartitionDropsAcrossGroupsUntilHeal(t *testing.T) {
	a, b := Split(5)
	c := NewPartitionController(0, a, b, 30*time.Millisecond)

	assert.False(t, c.ShouldDrop(1))
	assert.True(t, c.ShouldDrop(2))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, c.ShouldDrop(2))
}
