package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"relaychat/internal/config"
	"relaychat/internal/domain"
	"relaychat/internal/security"
	"relaychat/internal/service"
	"relaychat/internal/store/postgres"
	"relaychat/internal/store/sqlite"
	"relaychat/internal/ws"
)

type repositories struct {
	users         domain.UserRepository
	conversations domain.ConversationRepository
	members       domain.MembershipRepository
	messages      domain.MessageRepository
	presence      domain.PresenceRepository
	typing        domain.TypingRepository
	reactions     domain.ReactionRepository
}

func buildRepositories(driver string, db *sql.DB) repositories {
	if driver == "postgres" {
		return repositories{
			users:         postgres.NewUserRepo(db),
			conversations: postgres.NewConversationRepo(db),
			members:       postgres.NewMembershipRepo(db),
			messages:      postgres.NewMessageRepo(db),
			presence:      postgres.NewPresenceRepo(db),
			typing:        postgres.NewTypingRepo(db),
			reactions:     postgres.NewReactionRepo(db),
		}
	}
	return repositories{
		users:         sqlite.NewUserRepo(db),
		conversations: sqlite.NewConversationRepo(db),
		members:       sqlite.NewMembershipRepo(db),
		messages:      sqlite.NewMessageRepo(db),
		presence:      sqlite.NewPresenceRepo(db),
		typing:        sqlite.NewTypingRepo(db),
		reactions:     sqlite.NewReactionRepo(db),
	}
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(cfg *config.Config, db *sql.DB, hub *ws.Hub, tokenSvc *security.TokenService, passwordHasher *security.PasswordHasher, encryptor *security.Encryptor) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	now := func() int64 { return time.Now().UnixMilli() }
	repos := buildRepositories(cfg.DBDriver, db)

	// Services
	identitySvc := service.NewIdentityService(repos.users, repos.presence, tokenSvc, passwordHasher, now)
	presenceSvc := service.NewPresenceService(repos.presence, now)
	typingSvc := service.NewTypingService(repos.typing, repos.users, now)
	convSvc := service.NewConversationService(repos.conversations, repos.members, repos.users, now)
	msgSvc := service.NewMessageService(repos.conversations, repos.members, repos.messages, repos.users, encryptor, now)
	reactionSvc := service.NewReactionService(repos.reactions, repos.messages)
	summarySvc := service.NewSummaryService(repos.conversations, repos.members, repos.messages, repos.users, repos.presence, encryptor, now)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": cfg.AppName, "version": "1.0.0"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(identitySvc))
			r.Post("/login", handleLogin(identitySvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, identitySvc))

			r.Post("/auth/logout", handleLogout(presenceSvc))
			r.Get("/auth/me", handleMe())
			r.Post("/auth/sync", handleSync(identitySvc))

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(identitySvc))
				r.Get("/online", handleListOnlineUsers(presenceSvc))
				r.Get("/{userID}", handleGetUser(identitySvc))
			})

			// Conversations, read cursors, typing, and messages
			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", handleCreateGroup(convSvc))
				r.Get("/", handleListConversations(summarySvc))
				r.Post("/dm", handleResolveDM(convSvc))
				r.Get("/{conversationID}", handleGetConversation(summarySvc))
				r.Post("/{conversationID}/read", handleMarkConversationRead(convSvc, hub))
				r.Get("/{conversationID}/messages", handleListMessages(msgSvc))
				r.Post("/{conversationID}/messages", handleCreateMessage(msgSvc, convSvc, hub))
				r.Post("/{conversationID}/typing", handleTypingSignal(convSvc, typingSvc, hub))
				r.Get("/{conversationID}/typing", handleTypingList(convSvc, typingSvc, now))
			})

			// Messages addressed directly by id
			r.Route("/messages", func(r chi.Router) {
				r.Delete("/{messageID}", handleDeleteMessage(msgSvc, convSvc, hub))
				r.Get("/{messageID}/reactions", handleListReactions(reactionSvc))
				r.Post("/{messageID}/reactions", handleToggleReaction(reactionSvc, msgSvc, convSvc, hub))
			})

			// Presence
			r.Post("/presence/heartbeat", handleHeartbeat(presenceSvc))
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, identitySvc, convSvc, msgSvc, typingSvc, presenceSvc, cfg.CORSOrigins))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain sentinel errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotAMember), errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
