package mid

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powledger/business/sys/metrics"
	"github.com/ardanlabs/powledger/foundation/web"
)

// Metrics updates program counters.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Add the metrics into the context for metric gathering.
			ctx = metrics.Set(ctx, m)

			// Call the next handler.
			start := time.Now()
			err := handler(ctx, w, r)

			// Errors are rendered further up the chain, so their status is
			// not known yet.
			status := "error"
			if err == nil {
				if v, verr := web.GetValues(ctx); verr == nil {
					status = strconv.Itoa(v.StatusCode)
				}
			}

			m.Requests.WithLabelValues(r.Method, status).Inc()
			m.Duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			if err != nil {
				m.Errors.Inc()
			}

			m.SampleGoroutines()

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return mw
}
