package server

import "sync/atomic"

// RoomMetrics records per-room counters for the diagnostics endpoint.
type RoomMetrics struct {
	TickCount       atomic.Int64
	InputsAccepted  atomic.Int64
	InputsRejected  atomic.Int64
	QueueOverflows  atomic.Int64
	Evictions       atomic.Int64
	Reconnects      atomic.Int64
	BroadcastBytes  atomic.Int64
	PatchesSent     atomic.Int64
	TickDurationsNs atomic.Int64
}

// Snapshot returns a read-only copy for HTTP output.
func (m *RoomMetrics) Snapshot() map[string]any {
	ticks := m.TickCount.Load()
	var avgTickMs float64
	if ticks > 0 {
		avgTickMs = float64(m.TickDurationsNs.Load()) / float64(ticks) / 1e6
	}
	return map[string]any{
		"tick_count":      ticks,
		"inputs_accepted": m.InputsAccepted.Load(),
		"inputs_rejected": m.InputsRejected.Load(),
		"queue_overflows": m.QueueOverflows.Load(),
		"evictions":       m.Evictions.Load(),
		"reconnects":      m.Reconnects.Load(),
		"broadcast_bytes": m.BroadcastBytes.Load(),
		"patches_sent":    m.PatchesSent.Load(),
		"avg_tick_ms":     avgTickMs,
	}
}
