// File: internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-chat/internal/middleware"
	"github.com/iyunix/go-chat/internal/ratelimit"
)

// RouterConfig lists what the HTTP surface is built from. Optional parts are
// skipped when nil or empty.
type RouterConfig struct {
	JWTSecret     []byte
	CORSOrigin    string
	FilesDir      string
	Metrics       http.Handler
	TurnLimiter   ratelimit.Limiter
	AuthHandler   *AuthHandler
	ChatHandler   *ChatHandler
	TurnHandler   *TurnHandler
	UploadHandler *UploadHandler
}

// NewRouter builds the HTTP surface. CORS wraps the whole router so
// preflight requests are answered even though no route matches OPTIONS.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.RecoverPanic)
	r.Use(middleware.LoggingMiddleware)

	// --- Public Routes ---
	r.HandleFunc("/health", Health).Methods("GET")
	r.HandleFunc("/api/log", LogFrontendEvent).Methods("POST")
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods("GET")
	}
	if cfg.FilesDir != "" {
		r.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FilesDir))))
	}

	// --- Protected Routes ---
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.NewJWTMiddleware(cfg.JWTSecret))

	if cfg.AuthHandler != nil {
		api.HandleFunc("/me", cfg.AuthHandler.Me).Methods("GET")
		api.HandleFunc("/logout", cfg.AuthHandler.Logout).Methods("POST")
	}

	ch := cfg.ChatHandler
	api.HandleFunc("/chats", ch.ListChats).Methods("GET")
	api.HandleFunc("/chats", ch.CreateChat).Methods("POST")
	api.HandleFunc("/chats/{chatId}", ch.DeleteChat).Methods("DELETE")
	api.HandleFunc("/chats/{chatId}/messages", ch.GetMessages).Methods("GET")
	api.HandleFunc("/chats/{chatId}/messages", ch.AppendMessage).Methods("POST")
	api.HandleFunc("/messages/{messageId}", ch.EditMessage).Methods("PATCH")
	api.HandleFunc("/history", ch.History).Methods("GET")

	var turn http.Handler = http.HandlerFunc(cfg.TurnHandler.StreamTurn)
	if cfg.TurnLimiter != nil {
		turn = middleware.RateLimitMiddleware(cfg.TurnLimiter, "turn")(turn)
	}
	api.Handle("/chat", turn).Methods("POST")

	if cfg.UploadHandler != nil {
		api.HandleFunc("/files/upload", cfg.UploadHandler.Upload).Methods("POST")
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	return corsMiddleware(cfg.CORSOrigin)(r)
}

func corsMiddleware(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
				w.Header().Set("Access-Control-Expose-Headers", "X-Chat-Id, X-Message-Id, Retry-After")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
