package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kybervision-api/internal/database"
	"kybervision-api/internal/handlers"
	"kybervision-api/internal/logging"
	"kybervision-api/internal/mailer"
	"kybervision-api/internal/middleware"
	"kybervision-api/internal/montage"
	"kybervision-api/internal/startup"
	"kybervision-api/internal/storage"
	"kybervision-api/internal/token"
)

func main() {
	startTime := time.Now()
	ctx := context.Background()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize database
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Seed admin accounts before the server accepts traffic
	startup.SeedAdminUsers(ctx, db)

	layout := storage.Layout{
		UploadDir:  config.UploadDir,
		VideoDir:   config.VideoDir,
		MontageDir: config.MontageDir,
	}

	// Initialize the montage pipeline
	runner := montage.NewRunner(db, layout, config.MontageWorkerBin)
	queue, err := buildQueue(ctx, config, runner)
	if err != nil {
		startup.LogFatal("Failed to initialize montage queue: %v", err)
	}

	signer := token.NewSigner(config.SecretKey, config.TokenTTL)
	sender := buildSender(config)

	// Initialize handlers
	h := handlers.New(db, layout, queue, runner, signer, sender, config)

	// Setup router
	router := setupRouter(h)

	// Apply authentication middleware
	authedRouter := h.AuthMiddleware(router)

	// Apply logging + metrics middleware
	loggedHandler := middleware.Logger(config.LogHealthChecks)(authedRouter)
	handler := middleware.Metrics(routeTemplate(router))(loggedHandler)

	// WriteTimeout stays 0: large video responses may stream for longer
	// than any sane fixed timeout.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics on a separate listener so it is never publicly routed
	go serveMetrics(config.MetricsPort)

	// Start graceful shutdown handler
	go handleShutdown(srv, queue, runner)

	// Start server
	startup.LogServerStarted(config, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func buildQueue(ctx context.Context, config *startup.Config, runner *montage.Runner) (montage.Queue, error) {
	if config.MontageQueue == "redis" {
		return montage.NewRedisQueue(ctx, config.RedisAddr, config.RedisPassword, montage.DefaultRedisKey)
	}
	return montage.NewMemoryQueue(runner, config.MontageWorkers, config.MontageWorkers), nil
}

func buildSender(config *startup.Config) mailer.Sender {
	if config.SMTPAddr == "" {
		logging.Warn("SMTP_ADDR not set; completion notices will only be logged")
		return mailer.LogSender{}
	}
	return mailer.NewSMTPSender(config.SMTPAddr, config.SMTPFrom)
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.VersionInfo).Methods("GET")

	// Video routes
	v := r.PathPrefix("/videos").Subrouter()
	v.HandleFunc("", h.ListVideos).Methods("GET")
	v.HandleFunc("/upload", h.UploadVideo).Methods("POST")
	v.HandleFunc("/upload-youtube", h.UploadVideoYouTube).Methods("POST")
	v.HandleFunc("/update/{videoId}", h.UpdateVideo).Methods("POST")
	v.HandleFunc("/stream/{videoId}", h.StreamVideo).Methods("GET")
	v.HandleFunc("/stream-only/{videoId}", h.StreamOnlyVideo).Methods("GET")
	v.HandleFunc("/montage/{videoId}", h.CreateMontage).Methods("POST")

	// Montage service routes: the async queue, the worker callback, and
	// the token-gated artifact delivery
	m := v.PathPrefix("/montage-service").Subrouter()
	m.HandleFunc("/queue-a-job", h.QueueMontageJob).Methods("POST")
	m.HandleFunc("/video-completed-notify-user", h.VideoCompletedNotifyUser).Methods("POST")
	m.HandleFunc("/play-video/{token}", h.PlayMontage).Methods("GET")
	m.HandleFunc("/download-video/{token}", h.DownloadMontage).Methods("GET")

	// Registered last: {videoId} would otherwise shadow the fixed paths
	v.HandleFunc("/{videoId}", h.GetVideo).Methods("GET")
	v.HandleFunc("/{videoId}", h.DeleteVideo).Methods("DELETE")

	return r
}

// routeTemplate labels metrics by the mux route template instead of the
// raw path, keeping label cardinality bounded.
func routeTemplate(r *mux.Router) func(*http.Request) string {
	return func(req *http.Request) string {
		var match mux.RouteMatch
		if r.Match(req, &match) && match.Route != nil {
			if tmpl, err := match.Route.GetPathTemplate(); err == nil {
				return tmpl
			}
		}
		return "unmatched"
	}
}

func serveMetrics(port string) {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, m); err != nil && err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, queue montage.Queue, runner *montage.Runner) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Shutdown initiated (%s)", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	if err := queue.Close(); err != nil {
		logging.Warn("Queue shutdown error: %v", err)
	}

	runner.Cleanup()

	logging.Info("Shutdown complete")
}
