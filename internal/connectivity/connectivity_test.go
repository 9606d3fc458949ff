package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPinger struct {
	calls int
	err   error
}

func (c *countingPinger) Ping(ctx context.Context) error {
	c.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("ping without deadline")
	}
	return c.err
}

func TestStatic(t *testing.T) {
	s := NewStatic(true)
	assert.True(t, s.Online(context.Background()))

	s.Set(false)
	assert.False(t, s.Online(context.Background()))
}

func TestProber_CachesWithinTTL(t *testing.T) {
	pinger := &countingPinger{}
	p := NewProber(pinger, time.Second, time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	assert.True(t, p.Online(context.Background()))
	assert.True(t, p.Online(context.Background()))
	assert.Equal(t, 1, pinger.calls)

	pinger.err = errors.New("refused")
	now = now.Add(2 * time.Minute)
	assert.False(t, p.Online(context.Background()))
	assert.Equal(t, 2, pinger.calls)
}

func TestProber_NoCache(t *testing.T) {
	pinger := &countingPinger{err: errors.New("down")}
	p := NewProber(pinger, 0, 0, nil)

	assert.False(t, p.Online(context.Background()))
	assert.False(t, p.Online(context.Background()))
	assert.Equal(t, 2, pinger.calls)
}
