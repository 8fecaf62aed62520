package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

const (
	DefaultChannelCapacity = 256
	saturationRatio        = 0.8
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically samples the length of the buffered
// channels of the client and warns when one is close to full.
// Reading len and cap is non-blocking and does not interfere with producers.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel, metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{log: log, channels: channels, metricInterval: metricInterval}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return nil
		case <-ticker.C:
			for _, nc := range w.channels {
				capacity, length, ok := sample(nc.Channel)
				if !ok {
					w.log.Error("Provided object is not a channel", "name", nc.Name)
					continue
				}
				if saturated(capacity, length) {
					w.log.Warn("Channel close to saturation", "name", nc.Name, "length", length, "capacity", capacity)
					continue
				}
				w.log.Debug("Channel sampled", "name", nc.Name, "length", length, "capacity", capacity)
			}
		}
	}
}

func sample(channel any) (capacity, length int, ok bool) {
	v := reflect.ValueOf(channel)
	if v.Kind() != reflect.Chan {
		return 0, 0, false
	}
	return v.Cap(), v.Len(), true
}

func saturated(capacity, length int) bool {
	return capacity > 0 && float64(length) >= float64(capacity)*saturationRatio
}
