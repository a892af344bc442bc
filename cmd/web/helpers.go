package main

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/logger"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context(), app.logger).Error("internal error",
		"method", r.Method,
		"uri", r.URL.RequestURI(),
		"error", err,
		"trace", string(debug.Stack()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		app.logger.Error("encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
