// Package dashboard serves the driver dashboard: HTML pages, the JSON API
// and driver authentication.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/assistant"
	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/dashboard/api"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

//go:embed static
var staticFS embed.FS

// Config holds the dashboard server configuration.
type Config struct {
	ListenAddr      string
	JWTSecret       string
	TokenExpiration time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
	PanelCacheSize  int
	SecureCookies   bool
	ShutdownTimeout time.Duration
}

// Places is the subset of the Google Places client the dashboard uses.
type Places interface {
	api.Autocompleter
	api.DistanceFinder
}

// Dependencies are the collaborators the server is wired with.
type Dependencies struct {
	Store  storage.Store
	Chat   *assistant.Service
	Places Places
	Covers api.CoverFinder
	Clock  clock.Clock
}

// Server represents the dashboard HTTP server.
type Server struct {
	config      Config
	store       storage.Store
	auth        *AuthService
	panels      *api.PanelRegistry
	rateLimiter *RateLimiter
	server      *http.Server
	router      *mux.Router
	templates   *template.Template
	logger      zerolog.Logger
	cancel      context.CancelFunc
}

// NewServer creates a new dashboard server.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("dashboard: jwt secret is required")
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 100
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.PanelCacheSize == 0 {
		cfg.PanelCacheSize = 256
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	logger = logger.With().Str("component", "dashboard").Logger()

	auth := NewAuthService(deps.Store.Drivers(), deps.Store.Sessions(), cfg.JWTSecret, cfg.TokenExpiration, deps.Clock, logger)

	backend := storage.NewLedgerBackend(deps.Store)
	panels, err := api.NewPanelRegistry(cfg.PanelCacheSize, backend, backend)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(staticFS, "static/templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	auth.StartSessionCleanup(ctx, 15*time.Minute)

	s := &Server{
		config:      cfg,
		store:       deps.Store,
		auth:        auth,
		panels:      panels,
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow),
		router:      mux.NewRouter(),
		templates:   tmpl,
		logger:      logger,
		cancel:      cancel,
	}

	s.setupRoutes(deps)

	var handler http.Handler = s.router
	if len(cfg.AllowedOrigins) > 0 {
		handler = CORSMiddleware(cfg.AllowedOrigins)(handler)
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // assistant answers can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(deps Dependencies) {
	s.router.Use(MetricsMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.rateLimiter))
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	// Public routes
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/", s.handleHome).Methods("GET")
	s.router.HandleFunc("/login", s.handleLoginPage).Methods("GET")
	s.router.HandleFunc("/signup", s.handleSignupPage).Methods("GET")
	s.router.HandleFunc("/api/auth/signup", s.handleSignup).Methods("POST")
	s.router.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST")

	staticSub, err := fs.Sub(staticFS, "static")
	if err == nil {
		s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	}

	// Pages
	pages := s.router.PathPrefix("/dashboard").Subrouter()
	pages.Use(PageAuthMiddleware(s.auth))
	pages.HandleFunc("", s.handleDashboard).Methods("GET")
	pages.HandleFunc("/trip/read/{id}", s.handleTripPage).Methods("GET")
	pages.HandleFunc("/trip/edit/{id}", s.handleTripEditPage).Methods("GET")
	pages.HandleFunc("/profile", s.handleProfilePage).Methods("GET")

	// API
	authAPI := s.router.PathPrefix("/api").Subrouter()
	authAPI.Use(AuthMiddleware(s.auth, s.logger))

	authAPI.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	authAPI.HandleFunc("/auth/me", s.handleMe).Methods("GET")
	authAPI.HandleFunc("/auth/profile", s.handleUpdateProfile).Methods("PUT")
	authAPI.HandleFunc("/auth/change-password", s.handleChangePassword).Methods("POST")

	trips := api.NewTripHandler(deps.Store, deps.Places, deps.Covers, s.logger)
	authAPI.HandleFunc("/trips", trips.List).Methods("GET")
	authAPI.HandleFunc("/trips", trips.Create).Methods("POST")
	authAPI.HandleFunc("/trips/{id}", trips.Get).Methods("GET")
	authAPI.HandleFunc("/trips/{id}", trips.Update).Methods("PUT")
	authAPI.HandleFunc("/trips/{id}", trips.Delete).Methods("DELETE")

	eldLogs := api.NewEldLogHandler(deps.Store, s.panels, s.logger)
	authAPI.HandleFunc("/trips/{id}/eld-logs", eldLogs.List).Methods("GET")
	authAPI.HandleFunc("/trips/{id}/eld-logs", eldLogs.Submit).Methods("POST")

	fueling := api.NewFuelingHandler(deps.Store, s.logger)
	authAPI.HandleFunc("/trips/{id}/fueling-stops", fueling.List).Methods("GET")
	authAPI.HandleFunc("/trips/{id}/fueling-stops", fueling.Create).Methods("POST")

	routes := api.NewRouteHandler(deps.Store, s.logger)
	authAPI.HandleFunc("/trips/{id}/routes", routes.List).Methods("GET")
	authAPI.HandleFunc("/trips/{id}/routes", routes.Create).Methods("POST")
	authAPI.HandleFunc("/routes/{id}/stops", routes.ListStops).Methods("GET")
	authAPI.HandleFunc("/routes/{id}/stops", routes.CreateStop).Methods("POST")
	authAPI.HandleFunc("/waypoints", routes.CreateWaypoint).Methods("POST")

	dailyLogs := api.NewDailyLogHandler(deps.Store, s.logger)
	authAPI.HandleFunc("/trips/{id}/daily-logs", dailyLogs.List).Methods("GET")
	authAPI.HandleFunc("/trips/{id}/daily-logs", dailyLogs.Create).Methods("POST")
	authAPI.HandleFunc("/daily-logs/{id}/entries", dailyLogs.ListEntries).Methods("GET")
	authAPI.HandleFunc("/daily-logs/{id}/entries", dailyLogs.CreateEntry).Methods("POST")

	if deps.Chat != nil {
		trips.OnDeleted(deps.Chat.ForgetTrip)
		chat := api.NewChatHandler(deps.Chat, s.logger)
		authAPI.HandleFunc("/trips/{id}/conversations", chat.List).Methods("GET")
		authAPI.HandleFunc("/trips/{id}/conversations", chat.Create).Methods("POST")
		authAPI.HandleFunc("/conversations/{id}/messages", chat.Messages).Methods("GET")
		authAPI.HandleFunc("/conversations/{id}/query", chat.Query).Methods("POST")
	}

	if deps.Places != nil {
		placesHandler := api.NewPlacesHandler(deps.Places, s.logger)
		authAPI.HandleFunc("/places/autocomplete", placesHandler.Autocomplete).Methods("GET")
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts serving on ln, or on the configured address when ln is nil.
func (s *Server) Start(ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("dashboard listen: %w", err)
		}
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Msg("Starting dashboard server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Dashboard server error")
		}
	}()

	return nil
}

// Stop gracefully stops the dashboard server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping dashboard server")

	s.cancel()
	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("dashboard server shutdown: %w", err)
	}

	return nil
}
