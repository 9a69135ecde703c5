package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/emr-backend/internal/access"
	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/metrics"
)

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := authorize(w, r, access.ViewSlots, access.Resource{})
		if !ok {
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "invalid_date", "date is required")
			return
		}

		practitionerID := actor.ID
		if raw := r.URL.Query().Get("practitioner_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			practitionerID = id
		}

		slots, err := svc.AvailableSlots(r.Context(), practitionerID, date)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailableSlotsResponse{
			Date:           date,
			PractitionerID: practitionerID,
			AvailableSlots: slots,
		})
	}
}

func createAppointmentHandler(svc *appointment.Service, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := authorize(w, r, access.CreateAppointment, access.Resource{})
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			m.RecordBooking(metrics.BookingInvalid)
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			m.RecordBooking(metrics.BookingInvalid)
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateInput{
			PractitionerID: actor.ID,
			PatientID:      patientID,
			Date:           req.Date,
			Time:           req.Time,
			Duration:       req.Duration,
			Type:           appointment.Type(req.Type),
			Status:         appointment.Status(req.Status),
			Symptoms:       req.Symptoms,
			Notes:          req.Notes,
		})
		m.RecordBooking(bookingOutcome(err))
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.BookingCreated
	case errors.Is(err, appointment.ErrSlotConflict):
		return metrics.BookingConflict
	case errors.Is(err, appointment.ErrScheduleBusy):
		return metrics.BookingBusy
	case errors.Is(err, appointment.ErrInvalidInput),
		errors.Is(err, appointment.ErrPatientNotFound):
		return metrics.BookingInvalid
	}
	return metrics.BookingError
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, access.ListAppointments, access.Resource{}); !ok {
			return
		}

		q := r.URL.Query()
		var f appointment.Filter
		if raw := q.Get("status"); raw != "" {
			st := appointment.Status(raw)
			f.Status = &st
		}
		for name, dst := range map[string]**uuid.UUID{"patient_id": &f.PatientID, "practitioner_id": &f.PractitionerID} {
			raw := q.Get(name)
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
				return
			}
			*dst = &id
		}
		if raw := q.Get("date"); raw != "" {
			d, err := appointment.ParseDate(raw)
			if err != nil {
				handleError(w, r, err)
				return
			}
			f.Date = &d
		}

		list, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(list))
		for _, a := range list {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, access.ViewAppointment, access.Resource{}); !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, access.UpdateAppointment, access.Resource{}); !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		in := appointment.UpdateInput{
			Date:     req.Date,
			Time:     req.Time,
			Duration: req.Duration,
			Symptoms: req.Symptoms,
			Notes:    req.Notes,
		}
		if req.Type != nil {
			t := appointment.Type(*req.Type)
			in.Type = &t
		}
		if req.Status != nil {
			st := appointment.Status(*req.Status)
			in.Status = &st
		}

		appt, err := svc.UpdateAppointment(r.Context(), id, in)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, access.DeleteAppointment, access.Resource{}); !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func practitionerPatientsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, access.ListPatients, access.Resource{}); !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		patients, err := svc.ListPatientsForPractitioner(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]PatientResponse, 0, len(patients))
		for _, p := range patients {
			resp = append(resp, toPatientResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func patientPractitionersHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authorize(w, r, access.ListPractitioners, access.Resource{}); !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		practitioners, err := svc.ListPractitionersForPatient(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]PractitionerResponse, 0, len(practitioners))
		for _, p := range practitioners {
			resp = append(resp, PractitionerResponse{
				ID:         p.ID,
				FirstName:  p.FirstName,
				LastName:   p.LastName,
				Role:       p.Role,
				Speciality: p.Speciality,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
