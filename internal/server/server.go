package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/viewtube/apiserver/config"
	"github.com/viewtube/apiserver/internal/db"
	"github.com/viewtube/apiserver/internal/handlers"
	"github.com/viewtube/apiserver/internal/mq"
	"github.com/viewtube/apiserver/internal/services"
	"github.com/viewtube/apiserver/internal/storage"
	"github.com/viewtube/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and background consumers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	cancel     context.CancelFunc
}

// New constructs a Server with basic middleware and defaults. Missing
// token signing secrets are a fatal condition here, not per-request.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := services.NewTokenIssuer(cfg.Token)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	subscriptionRepo := store.NewSubscriptionRepository(dbConn)
	channelRepo := store.NewChannelRepository(dbConn)
	videoRepo := store.NewVideoRepository(dbConn)

	sessionService := services.NewSessionService(userRepo, tokens)
	userService := services.NewUserService(userRepo)
	channelService := services.NewChannelService(channelRepo, subscriptionRepo, userRepo)

	media, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := newBroker(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	consumerCtx, cancel := context.WithCancel(context.Background())
	if broker != nil {
		channelService.WithPublisher(broker, cfg.MQ.SubscriberChannel)

		consumer := services.NewWatchEventConsumer(userRepo, videoRepo, broker, cfg.MQ.WatchEventChannel)
		go func() {
			if err := consumer.Run(consumerCtx); err != nil && consumerCtx.Err() == nil {
				log.Printf("watch event consumer stopped: %v", err)
			}
		}()
	}

	authMiddleware := handlers.RequireAuth(tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, sessionService, userService, media, authMiddleware)
	})
	router.Route("/channels", func(r chi.Router) {
		handlers.ChannelRouter(r, channelService, authMiddleware)
	})
	router.With(authMiddleware).Get("/users/history", handlers.NewChannelHandler(channelService).WatchHistory)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		cancel:     cancel,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newMediaStore(ctx context.Context, cfg config.MediaConfig) (*storage.MediaStore, error) {
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}

	media := storage.NewMediaStore(backend)
	if err := media.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return media, nil
}

func newBroker(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
