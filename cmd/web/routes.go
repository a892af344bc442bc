package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/rs/cors"
)

func (app *application) routes() http.Handler {
	mux := pat.New()

	mux.Post("/graphql", http.HandlerFunc(app.graphqlHandler))
	mux.Get("/graphql", http.HandlerFunc(app.graphqlHandler))
	mux.Get("/healthz", http.HandlerFunc(app.healthz))

	fileServer := http.FileServer(http.Dir(app.config.StaticDir))
	mux.Get("/static/", http.StripPrefix("/static", fileServer))

	c := cors.New(cors.Options{
		AllowedOrigins: app.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         600,
	})

	return app.recoverPanic(app.logRequest(c.Handler(app.authenticate(mux))))
}
