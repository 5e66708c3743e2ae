package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"chatwire/internal/auth"
	"chatwire/internal/config"
	"chatwire/internal/database"
	"chatwire/internal/fanout"
	"chatwire/internal/handlers"
	"chatwire/internal/registry"
	"chatwire/internal/services"
	"chatwire/internal/ws"
	"chatwire/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize services
	authService := auth.NewService(db, cfg)
	chatService := services.NewChatService(db)
	messageService := services.NewMessageService(db)

	// Initialize fan-out engine; the registry is owned by its loop
	engine := fanout.New(registry.New())

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService, db)
	chatHandlers := handlers.NewChatHandlers(chatService)
	messageHandlers := handlers.NewMessageHandlers(messageService)
	socketHandler := ws.NewHandler(engine, cfg.Socket)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authService, authHandlers, chatHandlers, messageHandlers, socketHandler)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("Socket endpoint: ws://localhost%s/ws", cfg.Server.Port)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Server shutting down...")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}

func setupRoutes(
	mux *http.ServeMux,
	authService *auth.Service,
	authHandlers *handlers.AuthHandlers,
	chatHandlers *handlers.ChatHandlers,
	messageHandlers *handlers.MessageHandlers,
	socketHandler *ws.Handler,
) {
	// User routes
	mux.HandleFunc("/api/user", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			authHandlers.Register(w, r)
		case http.MethodGet:
			handlers.RequireAuth(authService, authHandlers.SearchUsers)(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/user/login", authHandlers.Login)

	// Chat routes
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handlers.RequireAuth(authService, chatHandlers.AccessChat)(w, r)
		case http.MethodGet:
			handlers.RequireAuth(authService, chatHandlers.FetchChats)(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/chat/group", handlers.RequireAuth(authService, chatHandlers.CreateGroupChat))
	mux.HandleFunc("/api/chat/rename", handlers.RequireAuth(authService, chatHandlers.RenameGroup))
	mux.HandleFunc("/api/chat/groupadd", handlers.RequireAuth(authService, chatHandlers.AddToGroup))
	mux.HandleFunc("/api/chat/groupremove", handlers.RequireAuth(authService, chatHandlers.RemoveFromGroup))

	// Message routes
	mux.HandleFunc("/api/message", handlers.RequireAuth(authService, messageHandlers.SendMessage))
	mux.HandleFunc("/api/message/", handlers.RequireAuth(authService, messageHandlers.HandleMessagePath))

	// Socket route
	mux.HandleFunc("/ws", socketHandler.HandleSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
