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

type resolveDMRequest struct {
	OtherUserID int64 `json:"other_user_id"`
}

type createGroupRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"member_ids"`
}

// handleResolveDM returns the single direct conversation with the other user,
// creating it if it does not exist yet.
func handleResolveDM(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		var req resolveDMRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		convID, err := convSvc.ResolveDirect(r.Context(), user.ID, req.OtherUserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"conversation_id": convID})
	}
}

func handleCreateGroup(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		var req createGroupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		conv, err := convSvc.CreateGroup(r.Context(), user.ID, req.Name, req.MemberIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

func handleListConversations(summarySvc *service.SummaryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		summaries, err := summarySvc.ListForUser(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

// handleGetConversation returns JSON null for non-members; existence is not
// disclosed.
func handleGetConversation(summarySvc *service.SummaryService) http.HandlerFunc {
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

		summary, err := summarySvc.GetSummary(r.Context(), convID, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func handleMarkConversationRead(convSvc *service.ConversationService, hub *ws.Hub) http.HandlerFunc {
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

		if err := convSvc.MarkRead(r.Context(), user.ID, convID); err != nil {
			writeError(w, err)
			return
		}

		if memberIDs, err := convSvc.MemberIDs(r.Context(), convID); err == nil {
			hub.BroadcastToUsers(memberIDs, map[string]any{
				"type":            "messages_read",
				"conversation_id": convID,
				"user_id":         user.ID,
			})
		} else {
			log.Printf("mark read: member ids for %d: %v", convID, err)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleTypingSignal records the caller as typing for the short typing TTL and
// forwards the indicator to the other members.
func handleTypingSignal(convSvc *service.ConversationService, typingSvc *service.TypingService, hub *ws.Hub) http.HandlerFunc {
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

		memberIDs, err := convSvc.MemberIDs(r.Context(), convID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !containsID(memberIDs, user.ID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a member of this conversation"})
			return
		}

		if err := typingSvc.Signal(r.Context(), user.ID, convID); err != nil {
			writeError(w, err)
			return
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
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleTypingList returns who is typing right now, excluding the caller.
// Non-members get an empty list. The reference instant may be supplied via
// the "now" query parameter (unix millis) and defaults to server time.
func handleTypingList(convSvc *service.ConversationService, typingSvc *service.TypingService, now func() int64) http.HandlerFunc {
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

		memberIDs, err := convSvc.MemberIDs(r.Context(), convID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !containsID(memberIDs, user.ID) {
			writeJSON(w, http.StatusOK, []*service.TypingUser{})
			return
		}

		nowMillis := now()
		if raw := r.URL.Query().Get("now"); raw != "" {
			if parsed, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
				nowMillis = parsed
			}
		}

		typers, err := typingSvc.ListActive(r.Context(), convID, user.ID, nowMillis)
		if err != nil {
			writeError(w, err)
			return
		}
		if typers == nil {
			typers = []*service.TypingUser{}
		}
		writeJSON(w, http.StatusOK, typers)
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
