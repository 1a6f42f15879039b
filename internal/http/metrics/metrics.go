// Package metrics exposes the Prometheus instrumentation of the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once
	err  error

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	oauthLoginsTotal    *prometheus.CounterVec
)

// Register initializes the metrics and returns the /metrics handler.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		oauthLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_logins_total",
			Help: "Completed OAuth callbacks by provider and result",
		}, []string{"provider", "result"})

		for _, c := range []prometheus.Collector{httpRequestsTotal, httpRequestDuration, oauthLoginsTotal} {
			if regErr := register(reg, c); regErr != nil {
				err = regErr
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return promhttp.Handler(), nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// RecordOAuthLogin counts a finished callback. result is "success" or the
// wire error code.
func RecordOAuthLogin(provider, result string) {
	if oauthLoginsTotal != nil {
		oauthLoginsTotal.WithLabelValues(provider, result).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithMetrics instruments requests with counters and latency histograms.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httpRequestsTotal == nil {
			next.ServeHTTP(w, r)
			return
		}

		method := strings.ToUpper(r.Method)
		path := normalizePath(r.URL.Path)
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	})
}

// normalizePath collapses the provider path segment so the label set stays
// bounded.
func normalizePath(p string) string {
	const loginPrefix = "/api/v1/auth/oauth/login/"
	if strings.HasPrefix(p, loginPrefix) {
		return loginPrefix + ":provider"
	}
	const callbackPrefix = "/api/v1/auth/oauth/callback/"
	if strings.HasPrefix(p, callbackPrefix) {
		return callbackPrefix + ":provider"
	}
	return p
}
