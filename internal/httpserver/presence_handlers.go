package httpserver

import (
	"net/http"

	"relaychat/internal/service"
)

// handleHeartbeat refreshes the caller's presence. Clients call it on an
// interval; a user with no heartbeat inside the online TTL reads as offline.
func handleHeartbeat(presenceSvc *service.PresenceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		if err := presenceSvc.Heartbeat(r.Context(), user.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
