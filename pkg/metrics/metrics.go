package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

// A small gauge store backed by tstorage under the application workdir.
// Collectors write point-in-time gauges; the admin API reads recent ranges.

var (
	storage tstorage.Storage
	mu      sync.RWMutex
)

// InitMetrics opens the timeseries partition under workdir/data/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithPartitionDuration(6*time.Hour),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

// SetGauge records a single gauge sample at the current time. A nil storage
// (metrics disabled or init failed) is a no-op.
func SetGauge(name string, value int64) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
}

// QueryRange returns samples for a metric between start and end (unix seconds).
func QueryRange(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return nil, nil
	}
	points, err := s.Select(name, nil, start, end)
	if err != nil {
		if err == tstorage.ErrNoDataPoints {
			return nil, nil
		}
		return nil, err
	}
	return points, nil
}

// Close flushes and closes the underlying storage.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
