package monitor

import (
	"sync"
	"time"
)

type netSample struct {
	bytesReceived uint64
	bytesSent     uint64
	at            time.Time
}

// throughputHistory keeps a short trail of interface counters so Rate can
// report bytes/sec without a blocking sampling interval.
type throughputHistory struct {
	mu     sync.RWMutex
	window time.Duration
	max    int
	items  []netSample
}

func newThroughputHistory(max int, window time.Duration) *throughputHistory {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = 6 * time.Second
	}
	return &throughputHistory{max: max, window: window}
}

func (h *throughputHistory) Add(s netSample) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, s)
	if len(h.items) > h.max {
		h.items = h.items[len(h.items)-h.max:]
	}
}

// Rate averages over the oldest and newest samples inside the window.
func (h *throughputHistory) Rate(now time.Time) (receivedSpeed float64, sentSpeed float64) {
	if h == nil {
		return 0, 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.items) < 2 {
		return 0, 0
	}

	valid := make([]netSample, 0, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		s := h.items[i]
		if now.Sub(s.at) <= h.window {
			valid = append([]netSample{s}, valid...)
			continue
		}
		break
	}

	if len(valid) < 2 {
		return 0, 0
	}

	oldest := valid[0]
	newest := valid[len(valid)-1]
	dt := newest.at.Sub(oldest.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}

	receivedSpeed = float64(newest.bytesReceived-oldest.bytesReceived) / dt
	sentSpeed = float64(newest.bytesSent-oldest.bytesSent) / dt
	return receivedSpeed, sentSpeed
}
