package distributions

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOccurrenceJitter(t *testing.T) {
	t.Parallel()

	t.Run("given the same key and occurrence, then the jitter is identical", func(t *testing.T) {
		first := OccurrenceJitter("endpoint:checkout", 3, 250)
		for i := 0; i < 100; i++ {
			assert.Equal(t, first, OccurrenceJitter("endpoint:checkout", 3, 250))
		}
	})

	t.Run("given any occurrence, then jitter stays within the signed bound", func(t *testing.T) {
		for k := int64(0); k < 1000; k++ {
			j := OccurrenceJitter("global", k, 100)
			assert.LessOrEqual(t, math.Abs(j), 100.0)
		}
	})

	t.Run("given different occurrences, then jitter values differ", func(t *testing.T) {
		seen := map[float64]bool{}
		for k := int64(0); k < 50; k++ {
			seen[OccurrenceJitter("burst-1", k, 500)] = true
		}
		assert.Greater(t, len(seen), 40)
	})

	t.Run("given zero jitter, then the offset is zero", func(t *testing.T) {
		assert.Zero(t, OccurrenceJitter("anything", 9, 0))
	})
}

func TestRand_ConcurrentUse(t *testing.T) {
	t.Parallel()

	rng := NewSeededRand(42)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := rng.Float64()
				assert.GreaterOrEqual(t, v, 0.0)
				assert.Less(t, v, 1.0)
			}
		}()
	}
	wg.Wait()
}

func TestSeededRand_Reproducible(t *testing.T) {
	t.Parallel()

	a, b := NewSeededRand(99), NewSeededRand(99)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}
