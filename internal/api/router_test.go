package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/emr-backend/internal/access"
	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/auth"
	"github.com/hackgods/emr-backend/internal/chat"
	"github.com/hackgods/emr-backend/internal/directory"
	"github.com/hackgods/emr-backend/internal/invitation"
	"github.com/hackgods/emr-backend/internal/mail"
	"github.com/hackgods/emr-backend/internal/metrics"
	redisclient "github.com/hackgods/emr-backend/internal/redis"
)

const testSecret = "router-test-secret"

type testServer struct {
	srv     *httptest.Server
	issuer  *auth.Issuer
	repo    *appointment.MemoryRepository
	store   *chat.MemoryStore
	doctor  directory.User
	nurse   directory.User
	patient directory.User
	// patientRecord is the clinical record appointments are booked against.
	patientRecord appointment.Patient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := zerolog.Nop()
	ts := &testServer{
		issuer:  auth.NewIssuer(testSecret, time.Hour),
		repo:    appointment.NewMemoryRepository(),
		store:   chat.NewMemoryStore(),
		doctor:  directory.User{ID: uuid.New(), Username: "house", FirstName: "Gregory", LastName: "House", Role: access.RoleDoctor},
		nurse:   directory.User{ID: uuid.New(), Username: "joy", FirstName: "Nurse", LastName: "Joy", Role: access.RoleNurse},
		patient: directory.User{ID: uuid.New(), Username: "pat", FirstName: "Pat", LastName: "Smith", Role: access.RolePatient},
	}
	email := "pat@example.com"
	ts.patientRecord = appointment.Patient{ID: uuid.New(), FirstName: "Pat", LastName: "Smith", Email: &email, Category: "General"}
	ts.repo.AddPatient(ts.patientRecord)
	ts.repo.AddPractitioner(appointment.Practitioner{ID: ts.doctor.ID, FirstName: "Gregory", LastName: "House", Role: string(access.RoleDoctor)})

	dir := directory.NewMemory(ts.doctor, ts.nurse, ts.patient)
	verifier := auth.NewVerifier(testSecret)
	m := metrics.New()

	appts := appointment.NewService(ts.repo, redisclient.NewLocalLocker(), appointment.DefaultSlotPolicy(), log)
	invites := invitation.NewService(invitation.NewMemoryRepository(), ts.repo, dir, mail.NewLogMailer(log), log)
	gw := chat.NewGateway(verifier, dir, ts.store, chat.WithObserver(m.ChatObserver()))

	ok := func(context.Context) error { return nil }
	router := NewRouter(RouterConfig{
		Appointments: appts,
		Invitations:  invites,
		History:      chat.NewHistory(ts.store, dir, log),
		Chat:         chat.NewHandler(gw, log),
		Verifier:     verifier,
		Directory:    dir,
		Metrics:      m,
		Health:       NewHealthHandler(ok, nil, "test", "v0"),
		Logger:       log,
	})

	ts.srv = httptest.NewServer(router)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, as *directory.User, body any) *http.Response {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = strings.NewReader(string(raw))
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	require.NoError(t, err)
	if as != nil {
		token, err := ts.issuer.Issue(as.ID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) booking(date, at string) CreateAppointmentRequest {
	return CreateAppointmentRequest{PatientID: ts.patientRecord.ID.String(), Date: date, Time: at}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[ReadinessResponse](t, resp)
	assert.Equal(t, "ok", ready.Status)
	assert.NotContains(t, ready.Dependencies, "redis")
}

func TestReadiness_PostgresDown(t *testing.T) {
	h := NewHealthHandler(
		func(context.Context) error { return errors.New("connection refused") },
		func(context.Context) error { return nil },
		"test", "v0",
	)
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"down"`)
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/appointments", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", decode[ErrorResponse](t, resp).Error)

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_token", decode[ErrorResponse](t, resp).Error)
}

func TestAvailableSlots_DefaultsToCaller(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, ts.booking("2030-01-07", "10:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/appointments/available-slots?date=2030-01-07", &ts.doctor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[AvailableSlotsResponse](t, resp)

	assert.Equal(t, ts.doctor.ID, got.PractitionerID)
	assert.Len(t, got.AvailableSlots, 15)
	assert.NotContains(t, got.AvailableSlots, "10:00")
	assert.Equal(t, "09:00", got.AvailableSlots[0])
}

func TestAvailableSlots_Validation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/appointments/available-slots", &ts.doctor, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/appointments/available-slots?date=07-01-2030", &ts.doctor, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_date", decode[ErrorResponse](t, resp).Error)

	resp = ts.do(t, http.MethodGet, "/api/appointments/available-slots?date=2030-01-07", &ts.patient, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateAppointment_Conflict(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, ts.booking("2030-01-07", "10:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[AppointmentResponse](t, resp)
	assert.Equal(t, ts.doctor.ID, created.PractitionerID)
	assert.Equal(t, "10:30", created.EndTime)
	assert.Equal(t, "Scheduled", created.Status)

	resp = ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, ts.booking("2030-01-07", "10:15"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.Equal(t, "slot_conflict", e.Error)
	assert.Equal(t, "time slot is already booked", e.Details)

	resp = ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, ts.booking("2030-01-07", "10:30"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/metrics", nil, nil)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `appointment_bookings_total{outcome="conflict"} 1`)
	assert.Contains(t, string(raw), `appointment_bookings_total{outcome="created"} 2`)
}

func TestCreateAppointment_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, ts.booking("2030-01-07", "25:00"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, CreateAppointmentRequest{PatientID: "nope", Date: "2030-01-07", Time: "10:00"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_patient_id", decode[ErrorResponse](t, resp).Error)

	unknown := CreateAppointmentRequest{PatientID: uuid.NewString(), Date: "2030-01-07", Time: "10:00"}
	resp = ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, unknown)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/appointments", &ts.patient, ts.booking("2030-01-07", "10:00"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAppointmentLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/appointments", &ts.nurse, ts.booking("2030-01-08", "14:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[AppointmentResponse](t, resp).ID.String()

	resp = ts.do(t, http.MethodGet, "/api/appointments/"+id, &ts.doctor, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	confirmed := "Confirmed"
	resp = ts.do(t, http.MethodPatch, "/api/appointments/"+id, &ts.doctor, UpdateAppointmentRequest{Status: &confirmed})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Confirmed", decode[AppointmentResponse](t, resp).Status)

	back := "Scheduled"
	resp = ts.do(t, http.MethodPatch, "/api/appointments/"+id, &ts.doctor, UpdateAppointmentRequest{Status: &back})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, resp).Error)

	resp = ts.do(t, http.MethodGet, "/api/appointments?status=Confirmed&patient_id="+ts.patientRecord.ID.String(), &ts.doctor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]AppointmentResponse](t, resp), 1)

	resp = ts.do(t, http.MethodDelete, "/api/appointments/"+id, &ts.nurse, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/appointments/"+id, &ts.doctor, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/appointments/"+id, &ts.doctor, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/appointments/not-a-uuid", &ts.doctor, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRelationships(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/appointments", &ts.doctor, ts.booking("2030-01-07", "09:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/doctor/"+ts.doctor.ID.String()+"/patients", &ts.doctor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patients := decode[[]PatientResponse](t, resp)
	require.Len(t, patients, 1)
	assert.Equal(t, ts.patientRecord.ID, patients[0].ID)

	resp = ts.do(t, http.MethodGet, "/api/patient/"+ts.patientRecord.ID.String()+"/doctors", &ts.patient, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doctors := decode[[]PractitionerResponse](t, resp)
	require.Len(t, doctors, 1)
	assert.Equal(t, "House", doctors[0].LastName)

	resp = ts.do(t, http.MethodGet, "/api/doctor/"+ts.doctor.ID.String()+"/patients", &ts.patient, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInvitations(t *testing.T) {
	ts := newTestServer(t)

	req := CreateInvitationRequest{PatientID: ts.patientRecord.ID.String(), PreferredDates: []string{"2030-02-01", "2030-02-03"}}
	resp := ts.do(t, http.MethodPost, "/api/invitations", &ts.doctor, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	inv := decode[InvitationResponse](t, resp)
	assert.Equal(t, "Pending", inv.Status)
	assert.Equal(t, []string{"2030-02-01", "2030-02-03"}, inv.PreferredDates)

	resp = ts.do(t, http.MethodGet, "/api/invitations/"+inv.ID.String(), &ts.doctor, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/invitations", &ts.doctor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]InvitationResponse](t, resp), 1)

	resp = ts.do(t, http.MethodPost, "/api/invitations", &ts.patient, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req.PreferredDates = []string{"soon"}
	resp = ts.do(t, http.MethodPost, "/api/invitations", &ts.doctor, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatHistoryAndConversations(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, ts.store.Insert(ctx, &chat.Message{SenderID: ts.patient.ID, ReceiverID: ts.doctor.ID, Body: "hello"}))
	require.NoError(t, ts.store.Insert(ctx, &chat.Message{SenderID: ts.doctor.ID, ReceiverID: ts.patient.ID, Body: "hi"}))

	path := "/api/chat/history/" + ts.doctor.ID.String() + "/" + ts.patient.ID.String()
	resp := ts.do(t, http.MethodGet, path, &ts.patient, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decode[[]MessageResponse](t, resp)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Message)

	resp = ts.do(t, http.MethodGet, path, &ts.nurse, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/chat/conversations", &ts.doctor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decode[[]UserResponse](t, resp)
	require.Len(t, users, 1)
	assert.Equal(t, ts.patient.ID, users[0].ID)

	resp = ts.do(t, http.MethodPost, "/api/chat/read/"+ts.patient.ID.String(), &ts.doctor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decode[MarkReadResponse](t, resp).Updated)
}

func TestChatSocket_RejectsMalformedPath(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/ws/chat/not-a-uuid/"+ts.doctor.ID.String()+"/", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_user1", decode[ErrorResponse](t, resp).Error)
}

func (ts *testServer) dialChat(t *testing.T, a, b uuid.UUID, as *directory.User) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/chat/" + a.String() + "/" + b.String() + "/"
	if as != nil {
		token, err := ts.issuer.Issue(as.ID)
		require.NoError(t, err)
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestChatSocket_UpgradesThroughMiddleware(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dialChat(t, ts.doctor.ID, ts.patient.ID, &ts.patient)
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hi"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got chat.Frame
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, chat.Frame{Sender: ts.patient.ID, Message: "hi"}, got)

	require.Eventually(t, func() bool {
		msgs, err := ts.store.History(context.Background(), ts.doctor.ID, ts.patient.ID)
		return err == nil && len(msgs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatSocket_ClosesWithoutCredential(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dialChat(t, ts.doctor.ID, ts.patient.ID, nil)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()

	var cerr *websocket.CloseError
	require.True(t, errors.As(err, &cerr), "want close error, got %v", err)
	assert.Equal(t, chat.CloseNoCredential, cerr.Code)
	assert.Equal(t, "no credential", cerr.Text)
}
