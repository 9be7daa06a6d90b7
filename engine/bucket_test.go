package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_BurstThenReject(t *testing.T) {
	t.Parallel()

	burst := 10.0
	bucket := NewTokenBucket(10, &burst)

	for i := 0; i < 10; i++ {
		assert.True(t, bucket.TryTake(), "request %d within burst should admit", i+1)
	}
	assert.False(t, bucket.TryTake(), "request past the burst should reject")
}

func TestTokenBucket_DefaultsCapacityToRate(t *testing.T) {
	t.Parallel()

	bucket := NewTokenBucket(3, nil)
	for i := 0; i < 3; i++ {
		assert.True(t, bucket.TryTake())
	}
	assert.False(t, bucket.TryTake())
}

func TestTokenBucket_Refills(t *testing.T) {
	t.Parallel()

	burst := 1.0
	bucket := NewTokenBucket(100, &burst)

	assert.True(t, bucket.TryTake())
	assert.False(t, bucket.TryTake())

	// 100 tokens/s refills one token in 10ms; give it 30ms of slack.
	time.Sleep(30 * time.Millisecond)
	assert.True(t, bucket.TryTake())
}

func TestTokenBucket_AdmissionBound(t *testing.T) {
	t.Parallel()

	// Over an interval dt, admits must not exceed capacity + rate*dt.
	burst := 5.0
	rate := 50.0
	bucket := NewTokenBucket(rate, &burst)

	start := time.Now()
	admits := 0
	for time.Since(start) < 100*time.Millisecond {
		if bucket.TryTake() {
			admits++
		}
	}
	elapsed := time.Since(start).Seconds()
	bound := burst + rate*elapsed
	assert.LessOrEqual(t, float64(admits), bound+1)
}

func TestTokenBucket_FractionalCapacity(t *testing.T) {
	t.Parallel()

	// A capacity below one token never admits until refill accumulates,
	// which at rate 0 is never.
	burst := 0.5
	bucket := NewTokenBucket(0, &burst)
	assert.False(t, bucket.TryTake())
}
