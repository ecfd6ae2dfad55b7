package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jackbrumley/voquill/internal/audio"
)

// Metrics contains the Prometheus collectors for the capture pipeline
type Metrics struct {
	registry *prometheus.Registry

	Recordings       *prometheus.CounterVec
	RecordingSeconds prometheus.Histogram
	DroppedSamples   prometheus.Counter
	EngineSampleRate prometheus.Gauge
	EngineStarts     prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Recordings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voquill_recordings_total",
			Help: "Total number of finished recordings and mic tests by kind and result",
		}, []string{"kind", "result"}),
		RecordingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voquill_recording_seconds",
			Help:    "Wall-clock length of recording sessions",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		DroppedSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "voquill_dropped_samples_total",
			Help: "Total number of samples dropped because the recording channel was full",
		}),
		EngineSampleRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voquill_engine_sample_rate",
			Help: "Negotiated sample rate of the live capture stream",
		}),
		EngineStarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "voquill_engine_starts_total",
			Help: "Total number of capture engine starts",
		}),
	}
}

// RecordingFinished implements audio.Observer.
func (m *Metrics) RecordingFinished(kind string, duration time.Duration, dropped uint64, err error) {
	m.Recordings.WithLabelValues(kind, result(err)).Inc()
	m.RecordingSeconds.Observe(duration.Seconds())
	if dropped > 0 {
		m.DroppedSamples.Add(float64(dropped))
	}
}

// EngineStarted records a newly opened capture engine.
func (m *Metrics) EngineStarted(sampleRate int) {
	m.EngineSampleRate.Set(float64(sampleRate))
	m.EngineStarts.Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, audio.ErrAudioTooShort):
		return "too_short"
	case errors.Is(err, audio.ErrEngineClosed):
		return "engine_closed"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
