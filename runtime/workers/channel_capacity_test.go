package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	req := require.New(t)
	ch := make(chan int, 5)
	ch <- 1
	ch <- 2

	capacity, length, ok := sample(ch)

	req.True(ok)
	req.Equal(5, capacity)
	req.Equal(2, length)
	_, _, ok = sample("not a channel")
	req.False(ok)
}

func TestSaturated(t *testing.T) {
	req := require.New(t)

	req.True(saturated(10, 8))
	req.False(saturated(10, 7))
	req.False(saturated(0, 0))
}

func TestChannelCapacityWorker_Stops_On_Context(t *testing.T) {
	req := require.New(t)
	worker := NewChannelCapacityWorker(slog.Default(), []NamedChannel{
		{Name: "events", Channel: make(chan int, 4)},
		{Name: "broken", Channel: 42},
	}, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
}
