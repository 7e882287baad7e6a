// Package metrics provides Prometheus metrics for forwarding runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/v4l2forward/internal/events"
	"github.com/smazurov/v4l2forward/internal/forward"
)

var labels = []string{"source", "sink"}

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "v4l2forward",
		Subsystem: "forward",
		Name:      "frames_total",
		Help:      "Frames forwarded from source to sink",
	}, labels)

	bytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "v4l2forward",
		Subsystem: "forward",
		Name:      "bytes_total",
		Help:      "Bytes forwarded from source to sink",
	}, labels)

	throughput = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "v4l2forward",
		Subsystem: "forward",
		Name:      "throughput_mbps",
		Help:      "Throughput of the last iteration in MB/s",
	}, labels)

	meanThroughput = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "v4l2forward",
		Subsystem: "forward",
		Name:      "mean_throughput_mbps",
		Help:      "Running mean throughput in MB/s",
	}, labels)

	fps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "v4l2forward",
		Subsystem: "forward",
		Name:      "fps",
		Help:      "Frames per second of the last completed run",
	}, labels)

	iterationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "v4l2forward",
		Subsystem: "forward",
		Name:      "iteration_seconds",
		Help:      "Time to acquire one frame and release it to the sink",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, labels)

	state = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "v4l2forward",
		Subsystem: "forward",
		Name:      "state",
		Help:      "1 for the current run state, 0 otherwise",
	}, append(append([]string{}, labels...), "state"))

	// Local cache for the status API.
	cache   = make(map[string]*RunMetrics)
	cacheMu sync.RWMutex
)

var allStates = []forward.State{
	forward.StateIdle,
	forward.StateNegotiated,
	forward.StateStreaming,
	forward.StateDone,
	forward.StateAborted,
}

// RunMetrics holds current metric values for a source/sink pair.
type RunMetrics struct {
	Frames   uint64
	Bytes    uint64
	MBps     float64
	MeanMBps float64
	FPS      float64
	State    string
}

// Collector feeds one source/sink pair's metrics from the event bus.
type Collector struct {
	source string
	sink   string
	unsubs []func()
}

// NewCollector creates a collector for the pair and marks it idle.
func NewCollector(source, sink string) *Collector {
	c := &Collector{source: source, sink: sink}
	c.setState(forward.StateIdle)
	return c
}

// Subscribe attaches the collector to bus. The returned function detaches it.
func (c *Collector) Subscribe(bus *events.Bus) func() {
	c.unsubs = append(c.unsubs,
		bus.Subscribe(func(e events.FrameForwardedEvent) { c.ObserveFrame(e) }),
		bus.Subscribe(func(e events.StateChangedEvent) { c.setState(forward.State(e.To)) }),
		bus.Subscribe(func(e events.RunFinishedEvent) { c.ObserveSummary(e) }),
	)
	return func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
		c.unsubs = nil
	}
}

// ObserveFrame records one timed iteration.
func (c *Collector) ObserveFrame(e events.FrameForwardedEvent) {
	framesTotal.WithLabelValues(c.source, c.sink).Inc()
	bytesTotal.WithLabelValues(c.source, c.sink).Add(float64(e.Length))
	throughput.WithLabelValues(c.source, c.sink).Set(e.MBps)
	meanThroughput.WithLabelValues(c.source, c.sink).Set(e.MeanMBps)
	iterationSeconds.WithLabelValues(c.source, c.sink).Observe(e.Elapsed)

	c.update(func(m *RunMetrics) {
		m.Frames++
		m.Bytes += uint64(e.Length)
		m.MBps = e.MBps
		m.MeanMBps = e.MeanMBps
	})
}

// ObserveSummary records the final figures of a run.
func (c *Collector) ObserveSummary(e events.RunFinishedEvent) {
	fps.WithLabelValues(c.source, c.sink).Set(e.FPS)
	meanThroughput.WithLabelValues(c.source, c.sink).Set(e.MBps)

	c.update(func(m *RunMetrics) {
		m.FPS = e.FPS
		m.MeanMBps = e.MBps
	})
}

func (c *Collector) setState(current forward.State) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		state.WithLabelValues(c.source, c.sink, string(s)).Set(v)
	}
	c.update(func(m *RunMetrics) { m.State = string(current) })
}

func (c *Collector) key() string {
	return c.source + "->" + c.sink
}

func (c *Collector) update(fn func(*RunMetrics)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	m, ok := cache[c.key()]
	if !ok {
		m = &RunMetrics{}
		cache[c.key()] = m
	}
	fn(m)
}

// Snapshot returns the current values for the pair, or nil if none exist.
func (c *Collector) Snapshot() *RunMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	if m, ok := cache[c.key()]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// Delete removes all series for the pair.
func (c *Collector) Delete() {
	framesTotal.DeleteLabelValues(c.source, c.sink)
	bytesTotal.DeleteLabelValues(c.source, c.sink)
	throughput.DeleteLabelValues(c.source, c.sink)
	meanThroughput.DeleteLabelValues(c.source, c.sink)
	fps.DeleteLabelValues(c.source, c.sink)
	iterationSeconds.DeleteLabelValues(c.source, c.sink)
	for _, s := range allStates {
		state.DeleteLabelValues(c.source, c.sink, string(s))
	}

	cacheMu.Lock()
	delete(cache, c.key())
	cacheMu.Unlock()
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}
