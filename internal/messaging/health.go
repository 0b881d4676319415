package messaging

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck is one named dependency check (Postgres ping, Redis ping).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health answers GET /health with 200 when every check passes, 503 otherwise.
func Health(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[c.Name] = err.Error()
				continue
			}
			resp[c.Name] = "ok"
		}
		writeJSON(w, status, resp)
	}
}
