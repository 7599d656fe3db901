/*
Package message implements the per-channel message log.

Each channel's log is one ordered document. Messages are stored with the author's user id
and converted to usernames only when they are handed to clients (see Display).
*/
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// Message types.
const (
	TypeMessage       = "message"
	TypeSlashResponse = "slash_response"
)

// ReplyRef points at the message being replied to.
type ReplyRef struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

// Message is one entry of a channel log. User holds the author id.
type Message struct {
	ID        string              `json:"id"`
	User      string              `json:"user"`
	Content   string              `json:"content"`
	Timestamp float64             `json:"timestamp"`
	Type      string              `json:"type"`
	Pinned    bool                `json:"pinned"`
	Edited    bool                `json:"edited,omitempty"`
	ReplyTo   *ReplyRef           `json:"reply_to,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := m
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		out.ReplyTo = &ref
	}
	if m.Reactions != nil {
		out.Reactions = maps.Clone(m.Reactions)
		for k, v := range out.Reactions {
			out.Reactions[k] = slices.Clone(v)
		}
	}
	return out
}

// Timestamp converts t into fractional unix seconds.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// Resolver maps user ids to usernames.
type Resolver interface {
	Username(id string) string
}

// Display returns a copy of m with every user id replaced by a username.
func Display(m Message, names Resolver) Message {
	out := m.Clone()
	out.User = names.Username(m.User)
	if out.ReplyTo != nil {
		out.ReplyTo.User = names.Username(out.ReplyTo.User)
	}
	for emoji, ids := range out.Reactions {
		usernames := make([]string, len(ids))
		for i, id := range ids {
			usernames[i] = names.Username(id)
		}
		out.Reactions[emoji] = usernames
	}
	return out
}

// DisplayAll converts a slice of messages with Display.
func DisplayAll(msgs []Message, names Resolver) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Display(m, names)
	}
	return out
}

// Cursor marks where a page ends: either an offset counted back from the newest
// message or the id of a message that bounds the page exclusively.
type Cursor struct {
	Offset int
	ID     string
}

// UnmarshalJSON accepts a number (offset) or a string (message id).
func (c *Cursor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Cursor{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*c = Cursor{ID: id}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cursor must be a number or a message id")
	}
	switch {
	case n >= math.MaxInt:
		n = math.MaxInt
	case n <= math.MinInt:
		n = math.MinInt
	}
	*c = Cursor{Offset: int(n)}
	return nil
}
