// Package transport holds what the serial and raw USB transports share.
package transport

import "sync/atomic"

// Metrics contains atomic counters for one transport connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// ExchangeCount indicates the number of completed request/response exchanges.
	ExchangeCount atomic.Uint64
	// TimeoutCount indicates the number of reads that ran out of time.
	TimeoutCount atomic.Uint64
	// ErrorCount indicates the number of failed reads and writes, timeouts included.
	ErrorCount atomic.Uint64

	// BytesRead indicates the number of bytes received from the device.
	BytesRead atomic.Uint64
	// BytesWritten indicates the number of bytes sent to the device.
	BytesWritten atomic.Uint64
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Exchanges    uint64
	Timeouts     uint64
	Errors       uint64
	BytesRead    uint64
	BytesWritten uint64
}

func (m *Metrics) IncExchange() {
	m.ExchangeCount.Add(1)
}

func (m *Metrics) IncTimeout() {
	m.TimeoutCount.Add(1)
	m.ErrorCount.Add(1)
}

func (m *Metrics) IncError() {
	m.ErrorCount.Add(1)
}

func (m *Metrics) AddBytesRead(n int) {
	if n > 0 {
		m.BytesRead.Add(uint64(n))
	}
}

func (m *Metrics) AddBytesWritten(n int) {
	if n > 0 {
		m.BytesWritten.Add(uint64(n))
	}
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Exchanges:    m.ExchangeCount.Load(),
		Timeouts:     m.TimeoutCount.Load(),
		Errors:       m.ErrorCount.Load(),
		BytesRead:    m.BytesRead.Load(),
		BytesWritten: m.BytesWritten.Load(),
	}
}
