package api

import (
	"net/http"

	"github.com/hackgods/emr-backend/internal/auth"
	"github.com/hackgods/emr-backend/internal/chat"
)

// chatSocketHandler validates the room path before handing the connection to
// the gateway. Credentials travel in the query string and are checked after
// the upgrade so failures can be reported as close codes.
func chatSocketHandler(h *chat.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := parseUUIDParam(w, r, "user1")
		if !ok {
			return
		}
		b, ok := parseUUIDParam(w, r, "user2")
		if !ok {
			return
		}
		h.Serve(w, r, a, b)
	}
}

func chatHistoryHandler(history *chat.History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())
		a, ok := parseUUIDParam(w, r, "user1")
		if !ok {
			return
		}
		b, ok := parseUUIDParam(w, r, "user2")
		if !ok {
			return
		}

		msgs, err := history.Messages(r.Context(), actor, a, b)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]MessageResponse, 0, len(msgs))
		for _, m := range msgs {
			resp = append(resp, toMessageResponse(m))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func conversationsHandler(history *chat.History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		users, err := history.Conversations(r.Context(), actor)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]UserResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, toUserResponse(u))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func markReadHandler(history *chat.History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())
		counterpart, ok := parseUUIDParam(w, r, "counterpart_id")
		if !ok {
			return
		}

		n, err := history.MarkRead(r.Context(), actor, counterpart)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, MarkReadResponse{Updated: n})
	}
}
