package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnector_Disabled(t *testing.T) {
	req := require.New(t)
	r := newReconnector(ReconnectPolicy{})

	_, ok := r.next()

	req.False(ok)
}

func TestReconnector_Exhausts_And_Resets(t *testing.T) {
	req := require.New(t)
	r := newReconnector(ReconnectPolicy{MaxAttempts: 2, InitialInterval: 10 * time.Millisecond, MaxInterval: 50 * time.Millisecond})

	// Given two allowed attempts
	first, ok := r.next()
	req.True(ok)
	req.Positive(first)
	req.LessOrEqual(first, 50*time.Millisecond)
	_, ok = r.next()
	req.True(ok)

	// When a third is requested
	_, ok = r.next()

	// Then it is refused until the budget is reset
	req.False(ok)
	r.reset()
	_, ok = r.next()
	req.True(ok)
}
