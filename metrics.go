package tileview

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the viewer's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// JobsSubmitted counts jobs handed to the worker by kind ("init", "decode").
	JobsSubmitted *prometheus.CounterVec

	// DecodeDuration tracks tile decode latency.
	DecodeDuration prometheus.Histogram

	// DecodeErrors counts failed tiles by cause.
	DecodeErrors *prometheus.CounterVec

	// Inits counts image opens by result ("ok", "error").
	Inits *prometheus.CounterVec

	// Tiles tracks live tiles by state ("resident", "in_flight").
	Tiles *prometheus.GaugeVec
}

// NewMetrics creates and registers viewer metrics on reg. Collectors that
// are already registered, for example by another viewer, are reused.
// It returns nil for a nil reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tileview",
				Name:      "jobs_submitted_total",
				Help:      "Jobs submitted to the decode worker by kind",
			},
			[]string{"kind"},
		),
		DecodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tileview",
				Name:      "decode_duration_seconds",
				Help:      "Tile decode duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tileview",
				Name:      "decode_errors_total",
				Help:      "Failed tile decodes by cause",
			},
			[]string{"cause"},
		),
		Inits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tileview",
				Name:      "inits_total",
				Help:      "Image opens by result",
			},
			[]string{"result"},
		),
		Tiles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tileview",
				Name:      "tiles",
				Help:      "Live tiles by state",
			},
			[]string{"state"},
		),
	}

	m.JobsSubmitted = registerOrReuse(reg, m.JobsSubmitted)
	m.DecodeDuration = registerOrReuse(reg, m.DecodeDuration)
	m.DecodeErrors = registerOrReuse(reg, m.DecodeErrors)
	m.Inits = registerOrReuse(reg, m.Inits)
	m.Tiles = registerOrReuse(reg, m.Tiles)
	return m
}

// registerOrReuse registers c, or returns the collector already registered
// under the same descriptor. Other registration errors panic.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) jobSubmitted(kind string) {
	if m == nil {
		return
	}
	m.JobsSubmitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) decoded(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DecodeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) decodeFailed(c Cause) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) initDone(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Inits.WithLabelValues(result).Inc()
}

func (m *Metrics) setTiles(resident, inFlight int) {
	if m == nil {
		return
	}
	m.Tiles.WithLabelValues("resident").Set(float64(resident))
	m.Tiles.WithLabelValues("in_flight").Set(float64(inFlight))
}
