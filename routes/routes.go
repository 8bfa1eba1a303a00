package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/Dosada05/ride-challenges/docs"
	"github.com/Dosada05/ride-challenges/handlers"
	"github.com/Dosada05/ride-challenges/metrics"
	"github.com/Dosada05/ride-challenges/middleware"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	User      *handlers.UserHandler
	Track     *handlers.TrackHandler
	Challenge *handlers.ChallengeHandler
	Position  *handlers.PositionHandler
	Comment   *handlers.CommentHandler
	Strava    *handlers.StravaHandler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
	// Metrics and Gatherer are optional; /metrics is mounted only with a Gatherer.
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(chiMiddleware.RequestID, chiMiddleware.RealIP, chiMiddleware.Logger, chiMiddleware.Recoverer)
	router.Use(middleware.WithLogger(logger))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
	}

	authenticate := middleware.Authenticate(opts.JWTSecret)
	optionalAuth := middleware.OptionalAuth(opts.JWTSecret)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	router.Get("/swagger/doc.json", docs.Handler)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
	})

	router.Get("/statistics", h.User.SiteStatistics)

	router.Route("/users", func(r chi.Router) {
		r.With(authenticate).Get("/me", h.User.Me)
		r.With(authenticate).Patch("/me", h.User.UpdateMe)
		r.Route("/{userID}", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", h.User.Profile)
			r.Get("/statistics", h.User.Statistics)
			r.Get("/positions", h.Position.Current)
			r.Get("/tracks", h.Track.ListForUser)
		})
	})

	router.Route("/tracks", func(r chi.Router) {
		r.Get("/{trackID}", h.Track.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", h.Track.ListMine)
			r.Post("/", h.Track.Upload)
			r.Patch("/{trackID}", h.Track.Rename)
			r.Delete("/{trackID}", h.Track.Delete)
		})
	})

	router.Route("/challenges", func(r chi.Router) {
		// Публичные маршруты; токен нужен только для приватных челленджей
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", h.Challenge.List)
			r.Get("/{challengeID}", h.Challenge.Get)
			r.Get("/{challengeID}/participants", h.Challenge.Participants)
			r.Get("/{challengeID}/participants/{userID}/tracks", h.Challenge.ParticipantTracks)
			r.Get("/{challengeID}/standings", h.Challenge.Standings)
			r.Get("/{challengeID}/progress", h.Challenge.Progress)
			r.Get("/{challengeID}/positions/{userID}", h.Position.History)
			r.Get("/{challengeID}/positions/{userID}/timeseries", h.Position.TimeSeries)
			r.Get("/{challengeID}/positions/{userID}/delta", h.Position.DailyDelta)
			r.Get("/{challengeID}/comments", h.Comment.List)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Challenge.Create)
			r.Delete("/{challengeID}", h.Challenge.Delete)
			r.Post("/{challengeID}/join", h.Challenge.Join)
			r.Post("/{challengeID}/leave", h.Challenge.Leave)
			r.Post("/{challengeID}/close", h.Challenge.Close)
			r.Post("/{challengeID}/reopen", h.Challenge.Reopen)
			r.Post("/{challengeID}/comments", h.Comment.Add)
		})
	})

	router.Route("/comments", func(r chi.Router) {
		r.Use(authenticate)
		r.Put("/{commentID}", h.Comment.Edit)
		r.Delete("/{commentID}", h.Comment.Delete)
	})

	router.Route("/strava", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/auth-url", h.Strava.AuthURL)
		r.Post("/connect", h.Strava.Connect)
		r.Post("/sync", h.Strava.Sync)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate, middleware.RequireAdmin)
		r.Get("/users", h.User.AdminList)
		r.Get("/tracks", h.Track.AdminList)
		r.Post("/tracks/delete", h.Track.AdminDelete)
	})
}
