package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"relaychat/internal/service"
	"relaychat/internal/ws"
)

type createMessageRequest struct {
	Body string `json:"body"`
}

type toggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		convID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}

		views, err := msgSvc.List(r.Context(), user.ID, convID)
		if err != nil {
			writeError(w, err)
			return
		}
		if views == nil {
			views = []*service.MessageView{}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleCreateMessage(msgSvc *service.MessageService, convSvc *service.ConversationService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		convID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}

		var req createMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		msg, err := msgSvc.Append(r.Context(), user.ID, convID, req.Body)
		if err != nil {
			writeError(w, err)
			return
		}

		view, err := msgSvc.View(r.Context(), msg, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		if memberIDs, merr := convSvc.MemberIDs(r.Context(), convID); merr == nil {
			hub.BroadcastToUsers(memberIDs, map[string]any{
				"type":            "message",
				"conversation_id": convID,
				"message_id":      view.ID,
				"body":            view.Body,
				"sender_id":       view.SenderID,
				"sender_name":     view.SenderName,
				"created_at":      view.CreatedAt,
			})
		} else {
			log.Printf("create message: member ids for %d: %v", convID, merr)
		}

		writeJSON(w, http.StatusCreated, view)
	}
}

// handleDeleteMessage soft-deletes the caller's own message; readers keep the
// row with a redacted body.
func handleDeleteMessage(msgSvc *service.MessageService, convSvc *service.ConversationService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		msgID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}

		msg, err := msgSvc.SoftDelete(r.Context(), user.ID, msgID)
		if err != nil {
			writeError(w, err)
			return
		}

		if memberIDs, merr := convSvc.MemberIDs(r.Context(), msg.ConversationID); merr == nil {
			hub.BroadcastToUsers(memberIDs, map[string]any{
				"type":            "message_deleted",
				"conversation_id": msg.ConversationID,
				"message_id":      msg.ID,
			})
		} else {
			log.Printf("delete message: member ids for %d: %v", msg.ConversationID, merr)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListReactions(reactionSvc *service.ReactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		msgID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}

		groups, err := reactionSvc.ListForMessage(r.Context(), msgID, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if groups == nil {
			groups = []*service.ReactionGroup{}
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleToggleReaction(reactionSvc *service.ReactionService, msgSvc *service.MessageService, convSvc *service.ConversationService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		msgID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message id"})
			return
		}

		var req toggleReactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		if err := reactionSvc.Toggle(r.Context(), user.ID, msgID, req.Emoji); err != nil {
			writeError(w, err)
			return
		}

		groups, err := reactionSvc.ListForMessage(r.Context(), msgID, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if groups == nil {
			groups = []*service.ReactionGroup{}
		}

		if msg, merr := msgSvc.Get(r.Context(), msgID); merr == nil && msg != nil {
			if memberIDs, err := convSvc.MemberIDs(r.Context(), msg.ConversationID); err == nil {
				hub.BroadcastToUsers(memberIDs, map[string]any{
					"type":            "reaction",
					"conversation_id": msg.ConversationID,
					"message_id":      msgID,
					"user_id":         user.ID,
				})
			}
		}

		writeJSON(w, http.StatusOK, groups)
	}
}
