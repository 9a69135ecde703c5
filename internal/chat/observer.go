package chat

import (
	"github.com/rs/zerolog"
)

type DropReason string

const (
	DropMalformed      DropReason = "malformed"
	DropMissingMessage DropReason = "missing_message"
	DropPersistFailed  DropReason = "persist_failed"
	DropPublishFailed  DropReason = "publish_failed"
)

// Observer receives gateway events. Implementations must not block and
// cannot influence the gateway's behaviour.
type Observer interface {
	Connected(s *Session)
	Rejected(room Room, err *CloseError)
	Disconnected(s *Session)
	FrameDropped(s *Session, reason DropReason, err error)
	Relayed(s *Session, m Message)
	DeliverySkipped(key RoomKey, s *Session)
}

type NopObserver struct{}

func (NopObserver) Connected(*Session) {}
func (NopObserver) Rejected(Room, *CloseError) {}
func (NopObserver) Disconnected(*Session) {}
func (NopObserver) FrameDropped(*Session, DropReason, error) {}
func (NopObserver) Relayed(*Session, Message) {}
func (NopObserver) DeliverySkipped(RoomKey, *Session) {}

// Observers fans every event out to each element.
type Observers []Observer

func (o Observers) Connected(s *Session) {
	for _, ob := range o {
		ob.Connected(s)
	}
}

func (o Observers) Rejected(room Room, err *CloseError) {
	for _, ob := range o {
		ob.Rejected(room, err)
	}
}

func (o Observers) Disconnected(s *Session) {
	for _, ob := range o {
		ob.Disconnected(s)
	}
}

func (o Observers) FrameDropped(s *Session, reason DropReason, err error) {
	for _, ob := range o {
		ob.FrameDropped(s, reason, err)
	}
}

func (o Observers) Relayed(s *Session, m Message) {
	for _, ob := range o {
		ob.Relayed(s, m)
	}
}

func (o Observers) DeliverySkipped(key RoomKey, s *Session) {
	for _, ob := range o {
		ob.DeliverySkipped(key, s)
	}
}

// LogObserver writes gateway events to a zerolog logger.
type LogObserver struct {
	log zerolog.Logger
}

func NewLogObserver(log zerolog.Logger) *LogObserver {
	return &LogObserver{log: log.With().Str("component", "chat").Logger()}
}

func (o *LogObserver) session(ev *zerolog.Event, s *Session) *zerolog.Event {
	return ev.Str("session_id", s.ID.String()).
		Str("room", string(s.Room.Key)).
		Str("user_id", s.UserID.String())
}

func (o *LogObserver) Connected(s *Session) {
	o.session(o.log.Info(), s).Msg("chat session opened")
}

func (o *LogObserver) Rejected(room Room, err *CloseError) {
	o.log.Info().
		Str("room", string(room.Key)).
		Int("code", err.Code).
		Str("reason", err.Reason).
		Msg("chat handshake refused")
}

func (o *LogObserver) Disconnected(s *Session) {
	o.session(o.log.Info(), s).Msg("chat session closed")
}

func (o *LogObserver) FrameDropped(s *Session, reason DropReason, err error) {
	ev := o.log.Debug()
	if reason == DropPersistFailed || reason == DropPublishFailed {
		ev = o.log.Error()
	}
	o.session(ev, s).Err(err).Str("reason", string(reason)).Msg("chat frame dropped")
}

func (o *LogObserver) Relayed(s *Session, m Message) {
	o.session(o.log.Debug(), s).Int64("message_id", m.ID).Msg("chat message relayed")
}

func (o *LogObserver) DeliverySkipped(key RoomKey, s *Session) {
	o.session(o.log.Warn(), s).Str("target_room", string(key)).Msg("chat client too slow, frame skipped")
}
