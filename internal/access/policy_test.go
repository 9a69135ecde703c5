package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize_RoleRules(t *testing.T) {
	doctor := Actor{ID: uuid.New(), Role: RoleDoctor}
	nurse := Actor{ID: uuid.New(), Role: RoleNurse}
	pharmacist := Actor{ID: uuid.New(), Role: RolePharmacy}
	patient := Actor{ID: uuid.New(), Role: RolePatient}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		allow  bool
	}{
		{"doctor views slots", doctor, ViewSlots, true},
		{"nurse views slots", nurse, ViewSlots, true},
		{"patient views slots", patient, ViewSlots, false},
		{"nurse creates appointment", nurse, CreateAppointment, true},
		{"pharmacist creates appointment", pharmacist, CreateAppointment, false},
		{"nurse updates appointment", nurse, UpdateAppointment, true},
		{"doctor deletes appointment", doctor, DeleteAppointment, true},
		{"nurse deletes appointment", nurse, DeleteAppointment, false},
		{"patient lists practitioners", patient, ListPractitioners, true},
		{"pharmacist invites", pharmacist, CreateInvitation, false},
		{"patient lists conversations", patient, ListConversations, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.action, Resource{})
			if tt.allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorize_ChatRequiresParticipant(t *testing.T) {
	a := Actor{ID: uuid.New(), Role: RoleDoctor}
	b := Actor{ID: uuid.New(), Role: RolePatient}
	outsider := Actor{ID: uuid.New(), Role: RoleDoctor}
	conv := Conversation(a.ID, b.ID)

	for _, action := range []Action{ViewChatHistory, MarkChatRead, JoinChat} {
		assert.NoError(t, Authorize(a, action, conv), action)
		assert.NoError(t, Authorize(b, action, conv), action)
		assert.ErrorIs(t, Authorize(outsider, action, conv), ErrForbidden, action)
	}
}

func TestAuthorize_UnknownActionDenied(t *testing.T) {
	err := Authorize(Actor{ID: uuid.New(), Role: RoleDoctor}, Action("billing.void"), Resource{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleNurse.Valid())
	assert.False(t, Role("admin").Valid())
	assert.True(t, RoleDoctor.IsPractitioner())
	assert.False(t, RolePharmacy.IsPractitioner())
}
