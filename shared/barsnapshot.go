package shared

import (
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// BarSnapshot represents a bounded ring of the most recent bars for one
// market and timeframe.
type BarSnapshot struct {
	data    []*Bar
	dataMtx sync.RWMutex
	start   atomic.Int32
	count   atomic.Int32
	size    atomic.Int32
}

// NewBarSnapshot initializes a new bar snapshot.
func NewBarSnapshot(size int32) (*BarSnapshot, error) {
	if size <= 0 {
		return nil, errors.New("snapshot size must be positive")
	}

	snapshot := &BarSnapshot{
		data: make([]*Bar, size),
	}

	snapshot.size.Store(size)
	return snapshot, nil
}

// Update adds the provided bar to the snapshot.
func (s *BarSnapshot) Update(bar *Bar) {
	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	end := (start + count) % size
	s.data[end] = bar

	if count == size {
		// Overwrite the oldest entry when the snapshot is at capacity.
		s.start.Store((start + 1) % size)
	} else {
		s.count.Add(1)
	}
}

// Last returns the last added entry for the snapshot.
func (s *BarSnapshot) Last() *Bar {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	if count == 0 {
		return nil
	}

	end := (start + count - 1) % size
	return s.data[end]
}

// LastN fetches the last n number of elements from the snapshot, oldest first.
func (s *BarSnapshot) LastN(n int32) []*Bar {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	count := s.count.Load()
	size := s.size.Load()
	if n <= 0 || count == 0 {
		return nil
	}

	if n > count {
		n = count
	}

	set := make([]*Bar, 0, n)
	start := s.start.Load()
	for idx := count - n; idx < count; idx++ {
		set = append(set, s.data[(start+idx)%size])
	}

	return set
}

// Count returns the number of entries in the snapshot.
func (s *BarSnapshot) Count() int32 {
	return s.count.Load()
}

// AverageVolume returns the average volume over the last n entries.
func (s *BarSnapshot) AverageVolume(n int32) float64 {
	bars := s.LastN(n)
	if len(bars) == 0 {
		return 0
	}

	var sum float64
	for idx := range bars {
		sum += bars[idx].Volume
	}

	return sum / float64(len(bars))
}
