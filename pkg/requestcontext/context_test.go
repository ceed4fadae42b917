package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

	ctx := WithTime(context.Background(), fixed)
	got := Now(ctx)

	assert.True(t, got.Equal(fixed))
	assert.Equal(t, time.UTC, got.Location())
}

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now().UTC()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "req-7", RequestID(WithRequestID(context.Background(), "req-7")))
}
