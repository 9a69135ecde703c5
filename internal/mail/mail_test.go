package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "clinic", Password: "pw", From: "clinic@example.com"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	err := m.Send(context.Background(), Message{To: "pat@example.com", Subject: "Appointment\ninvite", Body: "line one\nline two"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "clinic@example.com", gotFrom)
	assert.Equal(t, []string{"pat@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Appointment invite\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nline one\r\nline two")
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipient)
	assert.ErrorContains(t, m.Send(context.Background(), Message{To: "x@example.com"}), "connection refused")
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(zerolog.Nop())
	assert.NoError(t, m.Send(context.Background(), Message{To: "x@example.com"}))
	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipient)
}
