// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesb_http_requests_total",
		Help: "HTTP requests by method, route template and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pesb_http_request_duration_seconds",
		Help:    "HTTP request latency by route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesb_uploads_total",
		Help: "Photo uploads by result.",
	}, []string{"result"})

	likeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesb_like_toggles_total",
		Help: "Like toggles by resulting state.",
	}, []string{"state"})

	comments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pesb_comments_total",
		Help: "Comments added.",
	})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesb_registrations_total",
		Help: "Registration attempts by result.",
	}, []string{"result"})
)

// RecordUpload counts an upload attempt by result: "success", "rejected"
// (bad input) or "failure".
func RecordUpload(result string) { uploads.WithLabelValues(result).Inc() }

func RecordLikeToggle(liked bool) {
	state := "unliked"
	if liked {
		state = "liked"
	}
	likeToggles.WithLabelValues(state).Inc()
}

func RecordComment() { comments.Inc() }

func RecordRegistration(result string) { registrations.WithLabelValues(result).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware records request count and latency keyed by the mux route
// template, so /posts/12/like and /posts/13/like share one series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
