package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/emr-backend/internal/auth"
	"github.com/hackgods/emr-backend/internal/invitation"
)

func createInvitationHandler(svc *invitation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		var req CreateInvitationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		inv, err := svc.Create(r.Context(), actor, invitation.CreateInput{
			PatientID:      patientID,
			PreferredDates: req.PreferredDates,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toInvitationResponse(*inv))
	}
}

func listInvitationsHandler(svc *invitation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())

		list, err := svc.List(r.Context(), actor)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]InvitationResponse, 0, len(list))
		for _, inv := range list {
			resp = append(resp, toInvitationResponse(inv))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getInvitationHandler(svc *invitation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.ActorFrom(r.Context())
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		inv, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toInvitationResponse(*inv))
	}
}
