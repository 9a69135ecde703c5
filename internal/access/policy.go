// Package access decides whether an actor may perform an action on a
// resource. Decisions depend only on the actor's role and identity, so they
// can be evaluated the same way from HTTP handlers, the chat gateway and tests.
package access

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden")

type Role string

const (
	RoleDoctor   Role = "doctor"
	RoleNurse    Role = "nurse"
	RolePharmacy Role = "pharmacy"
	RolePatient  Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleNurse, RolePharmacy, RolePatient:
		return true
	}
	return false
}

// IsPractitioner reports whether the role carries scheduling authority.
func (r Role) IsPractitioner() bool {
	return r == RoleDoctor || r == RoleNurse
}

type Action string

const (
	ViewSlots         Action = "slots.view"
	ListAppointments  Action = "appointment.list"
	ViewAppointment   Action = "appointment.view"
	CreateAppointment Action = "appointment.create"
	UpdateAppointment Action = "appointment.update"
	DeleteAppointment Action = "appointment.delete"
	ListPatients      Action = "practitioner.patients"
	ListPractitioners Action = "patient.practitioners"
	CreateInvitation  Action = "invitation.create"
	ViewInvitation    Action = "invitation.view"
	ViewChatHistory   Action = "chat.history"
	MarkChatRead      Action = "chat.read"
	JoinChat          Action = "chat.join"
	ListConversations Action = "chat.conversations"
)

// Actor is an authenticated user.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Resource describes what an action targets. Participants is only consulted
// for chat actions.
type Resource struct {
	Participants []uuid.UUID
}

// Conversation builds the resource for a two-party chat.
func Conversation(a, b uuid.UUID) Resource {
	return Resource{Participants: []uuid.UUID{a, b}}
}

type rule func(actor Actor, res Resource) bool

func practitioner(actor Actor, _ Resource) bool { return actor.Role.IsPractitioner() }

func doctorOnly(actor Actor, _ Resource) bool { return actor.Role == RoleDoctor }

func anyone(actor Actor, _ Resource) bool { return actor.ID != uuid.Nil }

func participant(actor Actor, res Resource) bool {
	for _, id := range res.Participants {
		if id == actor.ID {
			return true
		}
	}
	return false
}

var rules = map[Action]rule{
	ViewSlots:         practitioner,
	ListAppointments:  practitioner,
	ViewAppointment:   practitioner,
	CreateAppointment: practitioner,
	UpdateAppointment: practitioner,
	// Deletion is role-gated only; the owning practitioner is not compared.
	DeleteAppointment: doctorOnly,
	ListPatients:      practitioner,
	ListPractitioners: anyone,
	CreateInvitation:  practitioner,
	ViewInvitation:    practitioner,
	ViewChatHistory:   participant,
	MarkChatRead:      participant,
	JoinChat:          participant,
	ListConversations: anyone,
}

// Authorize returns nil when actor may perform action on res, otherwise an
// error wrapping ErrForbidden. Unknown actions are denied.
func Authorize(actor Actor, action Action, res Resource) error {
	allow, ok := rules[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %s", ErrForbidden, action)
	}
	if !allow(actor, res) {
		return fmt.Errorf("%w: %s may not %s", ErrForbidden, actor.Role, action)
	}
	return nil
}
