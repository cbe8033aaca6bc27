package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"courtbook/pkg/metrics"
)

// Metrics counts requests per method, route and status.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			metrics.RecordHTTPRequest(r.Method, RouteLabel(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start).Seconds())
		})
	}
}

// RouteLabel replaces path identifiers with placeholders to keep the label
// set bounded: /api/v1/bookings/id/42/cancel becomes /api/v1/bookings/id/:id/cancel.
func RouteLabel(path string) string {
	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i++ {
		switch segments[i-1] {
		case "id":
			segments[i] = ":id"
		case "courts":
			segments[i] = ":court_id"
		}
	}
	return strings.Join(segments, "/")
}
