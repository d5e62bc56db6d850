package routes

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"CapIot.webnode/internal/controller"
	"CapIot.webnode/internal/middleware"
)

// SetupRouter defines all API routes.
func SetupRouter(c *controller.ReadingController, logger *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(logger), middleware.Recoverer(logger))

	router.HandleFunc("/", c.HandleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", c.HandleHealth).Methods(http.MethodGet)
	SetupReadingRoutes(router, c)

	return router
}

// SetupReadingRoutes registers the ingestion and query endpoints.
func SetupReadingRoutes(router *mux.Router, c *controller.ReadingController) {
	router.HandleFunc("/data", c.HandleCreateReading).Methods(http.MethodPost)
	router.HandleFunc("/data", c.HandleListReadings).Methods(http.MethodGet)
	router.HandleFunc("/data/latest", c.HandleLatestReading).Methods(http.MethodGet)
}

// WithCORS allows requests from any origin.
func WithCORS(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(h)
}
