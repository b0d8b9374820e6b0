package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"sunnymovies/api"
	"sunnymovies/config"
	"sunnymovies/handlers"
	"sunnymovies/services/auth"
	"sunnymovies/services/bindings"
	"sunnymovies/services/catalog"
	"sunnymovies/services/identity"
	"sunnymovies/services/passwords"
	"sunnymovies/utils"
)

func main() {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Log to stdout and a rotated file under the data directory.
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "logs", "sunnymovies.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}))

	cfgManager, err := config.NewManager(dataDir)
	if err != nil {
		log.Fatalf("[main] load config: %v", err)
	}
	cfg := cfgManager.Get()

	if cfg.TMDBAPIKey == "" {
		log.Printf("[main] WARNING: no TMDB API key configured; catalog requests will fail")
	}

	passwordsSvc := passwords.NewService(afero.NewOsFs(), cfg.PasswordsPath)

	registry, err := bindings.NewService(dataDir)
	if err != nil {
		log.Fatalf("[main] open binding registry: %v", err)
	}

	var scheme identity.Scheme
	switch cfg.IdentityScheme {
	case config.SchemeAddress:
		scheme = identity.RemoteAddrScheme{}
	default:
		scheme = identity.NewDeviceTokenScheme(cfg.CookieName, cfg.SecureCookies)
	}
	log.Printf("[main] identity scheme: %s", cfg.IdentityScheme)

	gateway := auth.NewService(passwordsSvc, registry, scheme)
	catalogSvc := catalog.NewService(cfg.TMDBAPIKey, cfg.Language, filepath.Join(dataDir, "cache"), cfg.CacheTTLHours)

	authHandler := handlers.NewAuthHandler(gateway, passwordsSvc)
	moviesHandler := handlers.NewMoviesHandler(catalogSvc)
	settingsHandler := handlers.NewSettingsHandler(cfgManager, catalogSvc)

	r := utils.NewRouter()

	// Auth endpoints; login is rate limited per IP against password guessing.
	perMin := cfg.LoginRatePerMin
	if perMin < 1 {
		perMin = 10
	}
	burst := cfg.LoginBurst
	if burst < 1 {
		burst = 5
	}
	loginLimiter := api.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(perMin)), burst)
	r.HandleFunc("/api/auth/login", api.RateLimitHandlerFunc(loginLimiter, authHandler.Login)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/auth/validate", authHandler.Validate).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/auth/reload-passwords", authHandler.ReloadPasswords).Methods(http.MethodPost)

	// Catalog endpoints sit behind the device session gate.
	catalogRoutes := r.PathPrefix("/api").Subrouter()
	catalogRoutes.Use(api.DeviceSessionMiddleware(gateway))
	catalogRoutes.HandleFunc("/movies/popular", moviesHandler.Popular).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/movies/trending", moviesHandler.Trending).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/movies/top-rated", moviesHandler.TopRated).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/movies/search", moviesHandler.Search).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/movies/discover", moviesHandler.Discover).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/movies/{id:[0-9]+}", moviesHandler.Details).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/movies/{id:[0-9]+}/credits", moviesHandler.Credits).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/genres", moviesHandler.Genres).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/homepage", moviesHandler.Homepage).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet, http.MethodOptions)
	catalogRoutes.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods(http.MethodPut)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
