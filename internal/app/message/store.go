package message

import (
	"context"
	"slices"
	"strings"
	"time"

	"originchats/internal/app/store"
	"originchats/internal/pkg/errs"
	"originchats/internal/pkg/randx"
)

const (
	DefaultLimit = 100
	MaxLimit     = 200

	// DefaultRepliesLimit caps Replies when no limit is given.
	DefaultRepliesLimit = 50
)

// Store keeps one message log per channel.
type Store struct {
	logs *store.Collection[[]Message]
	now  func() time.Time
}

// NewStore returns a Store over backend.
func NewStore(backend store.Backend) *Store {
	return &Store{
		logs: store.NewCollection[[]Message](backend, "messages"),
		now:  time.Now,
	}
}

// ClampLimit applies the default and bounds used by List.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Append stores m at the end of the channel log. ID, Timestamp and Type are filled
// in when empty.
func (s *Store) Append(ctx context.Context, channel string, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = randx.MessageID()
	}
	if m.Timestamp == 0 {
		m.Timestamp = Timestamp(s.now())
	}
	if m.Type == "" {
		m.Type = TypeMessage
	}

	err := s.logs.Update(ctx, channel, func(log *[]Message) error {
		*log = append(*log, m)
		return nil
	})
	if err != nil {
		return Message{}, err
	}
	return m.Clone(), nil
}

// Get returns the message id in channel.
func (s *Store) Get(ctx context.Context, channel, id string) (Message, error) {
	log, err := s.logs.Get(ctx, channel)
	if err != nil {
		return Message{}, err
	}
	i := indexOf(log, id)
	if i < 0 {
		return Message{}, errs.NewError(errs.ErrMessageNotFound)
	}
	return log[i], nil
}

// List returns up to limit messages in chronological order ending before cursor.
// An unknown cursor id or an offset past the start of the log yields an empty page.
func (s *Store) List(ctx context.Context, channel string, cursor Cursor, limit int) ([]Message, error) {
	log, err := s.logs.Get(ctx, channel)
	if err != nil {
		return nil, err
	}
	return page(log, cursor, ClampLimit(limit)), nil
}

func page(log []Message, cursor Cursor, limit int) []Message {
	var end int
	if cursor.ID != "" {
		end = indexOf(log, cursor.ID)
		if end < 0 {
			return []Message{}
		}
	} else {
		end = len(log) - max(cursor.Offset, 0)
	}

	end = min(end, len(log))
	begin := max(0, end-limit)
	if end <= begin {
		return []Message{}
	}
	return slices.Clone(log[begin:end])
}

// mutate applies fn to message id in channel and returns the updated message.
func (s *Store) mutate(ctx context.Context, channel, id string, fn func(*Message) error) (Message, error) {
	var out Message
	err := s.logs.Update(ctx, channel, func(log *[]Message) error {
		i := indexOf(*log, id)
		if i < 0 {
			return errs.NewError(errs.ErrMessageNotFound)
		}
		if err := fn(&(*log)[i]); err != nil {
			return err
		}
		out = (*log)[i].Clone()
		return nil
	})
	return out, err
}

// Edit replaces the content and marks the message edited.
func (s *Store) Edit(ctx context.Context, channel, id, content string) (Message, error) {
	return s.mutate(ctx, channel, id, func(m *Message) error {
		m.Content = content
		m.Edited = true
		return nil
	})
}

// SetPinned pins or unpins a message.
func (s *Store) SetPinned(ctx context.Context, channel, id string, pinned bool) (Message, error) {
	return s.mutate(ctx, channel, id, func(m *Message) error {
		m.Pinned = pinned
		return nil
	})
}

// AddReaction records userID reacting with emoji. Reacting twice is a no-op.
func (s *Store) AddReaction(ctx context.Context, channel, id, emoji, userID string) (Message, error) {
	if !ValidEmoji(emoji) {
		return Message{}, errs.NewError(errs.ErrInvalidEmoji, emoji)
	}
	return s.mutate(ctx, channel, id, func(m *Message) error {
		if m.Reactions == nil {
			m.Reactions = make(map[string][]string)
		}
		if !slices.Contains(m.Reactions[emoji], userID) {
			m.Reactions[emoji] = append(m.Reactions[emoji], userID)
		}
		return nil
	})
}

// RemoveReaction removes userID's emoji reaction. It fails when there is none.
func (s *Store) RemoveReaction(ctx context.Context, channel, id, emoji, userID string) (Message, error) {
	if !ValidEmoji(emoji) {
		return Message{}, errs.NewError(errs.ErrInvalidEmoji, emoji)
	}
	return s.mutate(ctx, channel, id, func(m *Message) error {
		users := m.Reactions[emoji]
		if !slices.Contains(users, userID) {
			return errs.NewError(errs.ErrReactionNotFound)
		}

		users = slices.DeleteFunc(slices.Clone(users), func(u string) bool { return u == userID })
		if len(users) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = users
		}
		if len(m.Reactions) == 0 {
			m.Reactions = nil
		}
		return nil
	})
}

// Delete removes a message from the log and returns it.
func (s *Store) Delete(ctx context.Context, channel, id string) (Message, error) {
	var out Message
	err := s.logs.Update(ctx, channel, func(log *[]Message) error {
		i := indexOf(*log, id)
		if i < 0 {
			return errs.NewError(errs.ErrMessageNotFound)
		}
		out = (*log)[i]
		*log = slices.Delete(*log, i, i+1)
		return nil
	})
	return out, err
}

// Purge removes the newest count messages. It fails when the log is shorter.
func (s *Store) Purge(ctx context.Context, channel string, count int) error {
	if count <= 0 {
		return errs.NewError(errs.ErrInvalidField, "count")
	}
	return s.logs.Update(ctx, channel, func(log *[]Message) error {
		if len(*log) < count {
			return errs.NewError(errs.ErrPurgeTooMany, count)
		}
		*log = (*log)[:len(*log)-count]
		return nil
	})
}

// Pinned returns the pinned messages, newest first.
func (s *Store) Pinned(ctx context.Context, channel string) ([]Message, error) {
	return s.reversed(ctx, channel, func(m Message) bool { return m.Pinned })
}

// Search returns messages whose content contains query, ignoring case, newest first.
func (s *Store) Search(ctx context.Context, channel, query string) ([]Message, error) {
	q := strings.ToLower(query)
	return s.reversed(ctx, channel, func(m Message) bool {
		return strings.Contains(strings.ToLower(m.Content), q)
	})
}

func (s *Store) reversed(ctx context.Context, channel string, keep func(Message) bool) ([]Message, error) {
	log, err := s.logs.Get(ctx, channel)
	if err != nil {
		return nil, err
	}

	out := []Message{}
	for i := len(log) - 1; i >= 0; i-- {
		if keep(log[i]) {
			out = append(out, log[i])
		}
	}
	return out, nil
}

// Replies returns up to limit messages replying to id, oldest first.
func (s *Store) Replies(ctx context.Context, channel, id string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultRepliesLimit
	}
	log, err := s.logs.Get(ctx, channel)
	if err != nil {
		return nil, err
	}

	out := []Message{}
	for _, m := range log {
		if m.ReplyTo != nil && m.ReplyTo.ID == id {
			out = append(out, m)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Rename moves a channel log to a new key. Messages already under to are kept first.
func (s *Store) Rename(ctx context.Context, from, to string) error {
	return s.logs.Move(ctx, from, to, func(src []Message, dst *[]Message) error {
		*dst = append(*dst, src...)
		return nil
	})
}

// Drop deletes a channel log.
func (s *Store) Drop(ctx context.Context, channel string) error {
	return s.logs.Delete(ctx, channel)
}

func indexOf(log []Message, id string) int {
	return slices.IndexFunc(log, func(m Message) bool { return m.ID == id })
}
