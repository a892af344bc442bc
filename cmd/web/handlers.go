package main

import (
	"context"
	"net/http"
	"time"
)

const maxBodyBytes = 1 << 20

// graphqlHandler caps the request body and hands the request to the
// executor. GraphQL errors, including a missing query, are reported in the
// body with status 200.
func (app *application) graphqlHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	app.graph.ServeHTTP(w, r)
}

func (app *application) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if app.ping != nil {
		if err := app.ping(ctx); err != nil {
			app.logger.Warn("health check failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	app.writeJSON(w, code, map[string]string{"status": status})
}
