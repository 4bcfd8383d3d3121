package observability

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danmuck/packetio/internal/protocol/packet"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packetio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "packetio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packetio",
			Subsystem: "frame",
			Name:      "total",
			Help:      "Frames sent or received, by outcome.",
		},
		[]string{"node", "direction", "codec", "result"},
	)
	payloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "packetio",
			Subsystem: "frame",
			Name:      "payload_bytes",
			Help:      "Payload size of successful frames.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"node", "direction", "codec"},
	)
	frameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "packetio",
			Subsystem: "frame",
			Name:      "duration_seconds",
			Help:      "Time spent in one send or receive call.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "direction", "codec"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, frames, payloadBytes, frameDuration)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// FrameMetrics records adapter activity for one node. It satisfies
// packet.Observer.
type FrameMetrics struct {
	Node string
}

var _ packet.Observer = FrameMetrics{}

func NewFrameMetrics(node string) FrameMetrics {
	RegisterMetrics()
	return FrameMetrics{Node: node}
}

func (m FrameMetrics) FrameSent(e packet.Event) {
	m.record("send", e)
}

func (m FrameMetrics) FrameReceived(e packet.Event) {
	m.record("receive", e)
}

func (m FrameMetrics) record(direction string, e packet.Event) {
	frames.WithLabelValues(m.Node, direction, e.Codec, ResultLabel(e.Err)).Inc()
	frameDuration.WithLabelValues(m.Node, direction, e.Codec).Observe(e.Duration.Seconds())
	if e.Err == nil {
		payloadBytes.WithLabelValues(m.Node, direction, e.Codec).Observe(float64(e.PayloadBytes))
	}
}

// ResultLabel maps an adapter error onto a bounded label value.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, packet.ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, packet.ErrPartialFrame):
		return "partial"
	case errors.Is(err, packet.ErrEncode):
		return "encode"
	case errors.Is(err, packet.ErrDecode):
		return "decode"
	case errors.Is(err, io.EOF):
		return "eof"
	case errors.Is(err, packet.ErrIO):
		return "io"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
