package internal

import (
	"context"
	"embed"
	"net/http"
	"time"

	"it-asset-manager-api/internal/config"
	"it-asset-manager-api/internal/handlers"
	"it-asset-manager-api/pkg/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	Store   store.Store
	Router  *chi.Mux
	Metrics *Metrics
	Logger  *logrus.Logger

	exposeDetails bool
	importMapping string
}

// NewServer wires the router around st. The store is owned by the caller
// until Close is called.
func NewServer(cfg *config.Config, st store.Store, log *logrus.Logger) *Server {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	metrics := NewMetrics()

	s := &Server{
		Store:         metrics.InstrumentStore(st),
		Router:        chi.NewRouter(),
		Metrics:       metrics,
		Logger:        log,
		exposeDetails: cfg.ExposeErrorDetails,
		importMapping: cfg.ImportMappingFile,
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(RequestLogger(log))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}

	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)

	if cfg.EnableSwagger {
		s.mountDocs(s.Router)
	}
	if cfg.EnableMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.mountRoutes(s.Router)

	return s
}

// ServeHTTP makes Server usable directly as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Close releases the store
func (s *Server) Close(ctx context.Context) error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.WithError(err).Warn("database ping failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) mountRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", s.listAssets)
		r.Post("/", s.createAsset)
		r.Get("/{id}", s.getAsset)
		r.Put("/{id}", s.updateAsset)
		r.Delete("/{id}", s.deleteAsset)
	})

	importsHandler := handlers.NewImportsHandler(s.Store)
	importsHandler.MappingPath = s.importMapping
	importsHandler.ExposeDetails = s.exposeDetails
	r.Post("/imports/excel", importsHandler.UploadExcel)
	r.Get("/exports/excel", importsHandler.ExportExcel)
}

// mountDocs serves the OpenAPI document and a Swagger UI page
func (s *Server) mountDocs(mux *chi.Mux) {
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(docsPage))
	})
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>IT Asset Manager API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis],
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`
