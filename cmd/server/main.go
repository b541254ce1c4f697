package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"quiz-classroom/internal/activity"
	"quiz-classroom/internal/auth"
	"quiz-classroom/internal/config"
	"quiz-classroom/internal/mail"
	"quiz-classroom/internal/media"
	"quiz-classroom/internal/quiz"
	"quiz-classroom/internal/respond"
	"quiz-classroom/internal/session"
	"quiz-classroom/internal/validate"
	"quiz-classroom/pkg/cache"
	"quiz-classroom/pkg/database"
	"quiz-classroom/pkg/gateway"
	"quiz-classroom/pkg/websocket"
)

func main() {
	cfg := config.Load()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize database
	db, err := database.Open(&database.Config{
		Type:     cfg.DBType,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		Path:     cfg.DBPath,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Redis carries tree changes between instances and caches activities.
	// Without it a single instance runs on an in-process feed.
	var (
		feed          gateway.ChangeFeed
		activityCache activity.Cache
	)
	redisClient := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword)
	if cfg.RedisAddr == "" {
		feed = gateway.NewFeed()
	} else if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: redis at %s unavailable, running single-instance: %v", cfg.RedisAddr, err)
		feed = gateway.NewFeed()
	} else {
		redisFeed := cache.NewRedisFeed(redisClient)
		go func() {
			if err := redisFeed.Run(ctx); err != nil {
				log.Printf("Error relaying tree changes: %v", err)
			}
		}()
		feed = redisFeed
		activityCache = cache.NewRedisCache(redisClient)
	}
	tree := database.NewTree(db, feed)

	mailer, err := mail.NewMailer(ctx, cfg.AWSRegion, cfg.SESFromEmail)
	if err != nil {
		log.Printf("Warning: email disabled: %v", err)
		mailer, _ = mail.NewMailer(ctx, cfg.AWSRegion, "")
	}

	var uploader media.Uploader
	if cfg.DriveCredentialsFile != "" && cfg.DriveFolderID != "" {
		drive, err := media.NewDrive(ctx, cfg.DriveCredentialsFile, cfg.DriveFolderID)
		if err != nil {
			log.Printf("Warning: media uploads disabled: %v", err)
		} else {
			uploader = drive
		}
	}

	validator := validate.New()

	// Initialize repositories and services
	authRepo := auth.NewRepository(tree)
	authService := auth.NewService(authRepo, mailer, cfg.JWTSecret, cfg.JWTExpiration)

	var sessions *session.Manager
	wsHub := websocket.NewHub(func(token string) (string, error) {
		s, err := auth.Resolve(authService, sessions, token)
		if err != nil {
			return "", err
		}
		return s.ID, nil
	}, cfg.AllowedOrigins)
	sessions = session.NewManager(tree, activityCache, authRepo, wsHub, cfg.SessionTTL)
	quizService := quiz.NewService(sessions, cfg.FeedbackDelay)
	wsHub.SetMessageHandler(quiz.NewRealtime(quizService, sessions))

	go wsHub.Run(ctx)
	go sessions.Run(ctx, time.Minute)

	// Initialize handlers
	authHandler := auth.NewHandler(authService, sessions, validator)
	sessionHandler := session.NewHandler(validator)
	quizHandler := quiz.NewHandler(quizService, validator)
	mediaHandler := media.NewHandler(uploader, cfg.MaxUploadBytes)

	// Setup router
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Auth routes - no JWT required
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/avatars", sessionHandler.Avatars).Methods("GET")

	// Session routes - JWT required
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(authService, sessions))

	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/me", authHandler.Me).Methods("GET")
	apiRouter.HandleFunc("/pin/teacher", authHandler.EnterPIN).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/pin/teacher/digit", authHandler.BackspacePIN).Methods("DELETE", "OPTIONS")

	apiRouter.HandleFunc("/children", sessionHandler.ListChildren).Methods("GET")
	apiRouter.Handle("/children", auth.RequirePIN(http.HandlerFunc(sessionHandler.AddChild))).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/children/{id}", sessionHandler.GetChild).Methods("GET")
	apiRouter.HandleFunc("/children/{id}/unlock", sessionHandler.UnlockChild).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/children/{id}/select", sessionHandler.SelectChild).Methods("POST", "OPTIONS")
	apiRouter.Handle("/children/{id}/progress", auth.RequirePIN(http.HandlerFunc(quizHandler.GetChildProgress))).Methods("GET")
	apiRouter.Handle("/children/{childId}/activities/{activityId}/results", auth.RequirePIN(http.HandlerFunc(quizHandler.GetResults))).Methods("GET")

	apiRouter.HandleFunc("/activities", quizHandler.ListActivities).Methods("GET")
	apiRouter.Handle("/activities", auth.RequirePIN(http.HandlerFunc(quizHandler.CreateActivity))).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/activities/{id}", quizHandler.GetActivity).Methods("GET")
	apiRouter.Handle("/activities/{id}", auth.RequirePIN(http.HandlerFunc(quizHandler.UpdateActivity))).Methods("PATCH", "OPTIONS")
	apiRouter.Handle("/activities/{id}", auth.RequirePIN(http.HandlerFunc(quizHandler.DeleteActivity))).Methods("DELETE")

	apiRouter.HandleFunc("/play/{activityId}/start", quizHandler.StartQuiz).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/play/{activityId}", quizHandler.GetState).Methods("GET")
	apiRouter.HandleFunc("/play/{activityId}/answer", quizHandler.SubmitAnswer).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/play/{activityId}/restart", quizHandler.RestartQuiz).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/play/{activityId}", quizHandler.EndQuiz).Methods("DELETE", "OPTIONS")

	apiRouter.Handle("/media", auth.RequirePIN(http.HandlerFunc(mediaHandler.Upload))).Methods("POST", "OPTIONS")

	// WebSocket endpoint
	router.HandleFunc("/ws", wsHub.HandleWebSocket)

	// CORS middleware configuration
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown setup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	stop()
	sessions.Close()
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing redis: %v", err)
	}

	log.Println("Server shutdown gracefully")
}
