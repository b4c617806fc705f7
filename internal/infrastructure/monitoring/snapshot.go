package monitoring

import "time"

// Snapshot returns a copy of the current counters for the health endpoint.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.RelaysByKind = make(map[string]int64, len(m.snapshot.RelaysByKind))
	for k, v := range m.snapshot.RelaysByKind {
		s.RelaysByKind[k] = v
	}
	if s.TotalRequests > 0 {
		s.AvgLatencyMS = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
