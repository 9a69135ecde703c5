package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/emr-backend/internal/access"
	"github.com/hackgods/emr-backend/internal/directory"
)

// History serves the durable side of chat: past messages, conversation
// lists and read receipts.
type History struct {
	store Store
	dir   directory.Directory
	log   zerolog.Logger
}

func NewHistory(store Store, dir directory.Directory, log zerolog.Logger) *History {
	return &History{store: store, dir: dir, log: log}
}

// Messages returns the conversation between a and b, oldest first. Only a
// participant may read it.
func (h *History) Messages(ctx context.Context, actor access.Actor, a, b uuid.UUID) ([]Message, error) {
	if err := access.Authorize(actor, access.ViewChatHistory, access.Conversation(a, b)); err != nil {
		return nil, err
	}

	msgs, err := h.store.History(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return msgs, nil
}

// Conversations lists the users actor has exchanged messages with. Users
// that no longer exist are left out.
func (h *History) Conversations(ctx context.Context, actor access.Actor) ([]directory.User, error) {
	if err := access.Authorize(actor, access.ListConversations, access.Resource{}); err != nil {
		return nil, err
	}

	ids, err := h.store.Conversations(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}

	users := make([]directory.User, 0, len(ids))
	for _, id := range ids {
		u, err := h.dir.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				h.log.Warn().Str("user_id", id.String()).Msg("conversation counterpart missing from directory")
				continue
			}
			return nil, fmt.Errorf("resolve conversation user: %w", err)
		}
		users = append(users, *u)
	}
	return users, nil
}

// MarkRead flags every unread message from counterpart to actor as read and
// returns how many changed.
func (h *History) MarkRead(ctx context.Context, actor access.Actor, counterpart uuid.UUID) (int64, error) {
	if err := access.Authorize(actor, access.MarkChatRead, access.Conversation(actor.ID, counterpart)); err != nil {
		return 0, err
	}

	n, err := h.store.MarkRead(ctx, actor.ID, counterpart)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}
