package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"relaychat/internal/security"
	"relaychat/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

func memberOf(userID int64, memberIDs []int64) bool {
	for _, id := range memberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol),
// stamps presence on connect, then dispatches events:
//   - message   -> append & broadcast to conversation members
//   - typing    -> record typing signal & forward to other members
//   - mark_read -> advance the caller's read cursor & broadcast messages_read
//   - heartbeat -> refresh the caller's presence record
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	identity *service.IdentityService,
	convSvc *service.ConversationService,
	msgSvc *service.MessageService,
	typingSvc *service.TypingService,
	presenceSvc *service.PresenceService,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		subject, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := identity.ResolveSubject(ctx, subject)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := presenceSvc.Heartbeat(ctx, user.ID); err != nil {
			log.Printf("ws: heartbeat for %d: %v", user.ID, err)
		}
		hub.Register(user.ID, conn)
		defer func() {
			hub.Unregister(user.ID, conn)
			if hub.Connected(user.ID) {
				return
			}
			if err := presenceSvc.SetOffline(context.Background(), user.ID); err != nil {
				log.Printf("ws: set offline for %d: %v", user.ID, err)
			}
			hub.BroadcastAll(map[string]any{
				"type":    "user_offline",
				"user_id": user.ID,
				"name":    user.Name,
			})
		}()
		hub.BroadcastAll(map[string]any{
			"type":    "user_online",
			"user_id": user.ID,
			"name":    user.Name,
		})

		for {
			var payload map[string]any
			if err := conn.ReadJSON(&payload); err != nil {
				break
			}
			msgType, _ := payload["type"].(string)
			switch msgType {

			case "message":
				convIDf, _ := payload["conversation_id"].(float64)
				body, _ := payload["body"].(string)
				if convIDf == 0 || body == "" {
					sendError(conn, "message requires conversation_id and a non-empty body")
					continue
				}
				convID := int64(convIDf)
				msg, err := msgSvc.Append(ctx, user.ID, convID, body)
				if err != nil {
					log.Printf("ws: append message: %v", err)
					sendError(conn, "failed to send message")
					continue
				}
				view, err := msgSvc.View(ctx, msg, user.ID)
				if err != nil {
					log.Printf("ws: render message: %v", err)
					continue
				}
				memberIDs, err := convSvc.MemberIDs(ctx, convID)
				if err != nil {
					log.Printf("ws: member ids: %v", err)
					continue
				}
				hub.BroadcastToUsers(memberIDs, map[string]any{
					"type":            "message",
					"conversation_id": convID,
					"message_id":      view.ID,
					"body":            view.Body,
					"sender_id":       view.SenderID,
					"sender_name":     view.SenderName,
					"created_at":      view.CreatedAt,
				})

			case "mark_read":
				convIDf, _ := payload["conversation_id"].(float64)
				if convIDf == 0 {
					continue
				}
				convID := int64(convIDf)
				if err := convSvc.MarkRead(ctx, user.ID, convID); err != nil {
					log.Printf("ws: mark_read: %v", err)
					sendError(conn, "failed to mark conversation as read")
					continue
				}
				memberIDs, _ := convSvc.MemberIDs(ctx, convID)
				hub.BroadcastToUsers(memberIDs, map[string]any{
					"type":            "messages_read",
					"conversation_id": convID,
					"user_id":         user.ID,
				})

			case "typing":
				convIDf, _ := payload["conversation_id"].(float64)
				if convIDf == 0 {
					continue
				}
				convID := int64(convIDf)
				memberIDs, err := convSvc.MemberIDs(ctx, convID)
				if err != nil || !memberOf(user.ID, memberIDs) {
					sendError(conn, "not allowed for this conversation")
					continue
				}
				if err := typingSvc.Signal(ctx, user.ID, convID); err != nil {
					log.Printf("ws: typing signal: %v", err)
					continue
				}
				var others []int64
				for _, id := range memberIDs {
					if id != user.ID {
						others = append(others, id)
					}
				}
				hub.BroadcastToUsers(others, map[string]any{
					"type":            "typing",
					"conversation_id": convID,
					"user_id":         user.ID,
					"name":            user.Name,
				})

			case "heartbeat":
				if err := presenceSvc.Heartbeat(ctx, user.ID); err != nil {
					log.Printf("ws: heartbeat: %v", err)
				}

			default:
				log.Printf("ws: unknown event type %q from user %d", msgType, user.ID)
			}
		}
	}
}

func sendError(conn *websocket.Conn, msg string) {
	_ = conn.WriteJSON(map[string]any{
		"type":    "error",
		"message": msg,
	})
}
