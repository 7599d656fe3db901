/*
Package voice tracks who is connected to which voice channel.

The server never carries media. It only records each member's signaling peer id and mute
flag so that clients can negotiate direct connections. A user belongs to at most one voice
channel at a time; every method returns copies taken under the lock so callers can
broadcast without racing later transitions.
*/
package voice

import (
	"slices"
	"sync"

	"originchats/internal/pkg/errs"
)

// Member is one participant of a voice channel.
type Member struct {
	UserID   string `json:"-"`
	Username string `json:"username"`
	PeerID   string `json:"peer_id,omitempty"`
	Muted    bool   `json:"muted"`
}

// Public drops the peer id, for users that only view the channel.
func (m Member) Public() Member {
	m.PeerID = ""
	return m
}

// Roster is a snapshot of a voice channel's members in join order.
type Roster struct {
	Channel string
	Members []Member
}

// UserIDs returns the ids of the roster's members.
func (r Roster) UserIDs() []string {
	out := make([]string, len(r.Members))
	for i, m := range r.Members {
		out[i] = m.UserID
	}
	return out
}

// Public returns the members without peer ids.
func (r Roster) Public() []Member {
	out := make([]Member, len(r.Members))
	for i, m := range r.Members {
		out[i] = m.Public()
	}
	return out
}

// Departure describes a member leaving a channel. Before holds the roster as it was
// just before the member left.
type Departure struct {
	Channel string
	Member  Member
	Before  Roster
}

// State is the process-wide voice membership table.
type State struct {
	mu       sync.Mutex
	channels map[string][]Member
	where    map[string]string
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		channels: make(map[string][]Member),
		where:    make(map[string]string),
	}
}

// Join puts userID into channel. A user already in another channel leaves it first and
// the departure is returned. Joining the current channel again refreshes the peer id.
func (s *State) Join(channel, userID, username, peerID string) (*Departure, Roster) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dep *Departure
	if current, ok := s.where[userID]; ok {
		if current == channel {
			members := s.channels[channel]
			i := indexOf(members, userID)
			members[i].PeerID = peerID
			members[i].Username = username
			return nil, s.rosterLocked(channel)
		}
		dep = s.leaveLocked(userID)
	}

	s.channels[channel] = append(s.channels[channel], Member{
		UserID:   userID,
		Username: username,
		PeerID:   peerID,
	})
	s.where[userID] = channel
	return dep, s.rosterLocked(channel)
}

// Leave removes userID from its voice channel. It returns nil when the user was not
// in one.
func (s *State) Leave(userID string) *Departure {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.leaveLocked(userID)
}

func (s *State) leaveLocked(userID string) *Departure {
	channel, ok := s.where[userID]
	if !ok {
		return nil
	}

	before := s.rosterLocked(channel)
	members := s.channels[channel]
	i := indexOf(members, userID)
	member := members[i]

	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		delete(s.channels, channel)
	} else {
		s.channels[channel] = members
	}
	delete(s.where, userID)

	return &Departure{Channel: channel, Member: member, Before: before}
}

// SetMuted updates the mute flag of a current member.
func (s *State) SetMuted(userID string, muted bool) (Member, Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.where[userID]
	if !ok {
		return Member{}, Roster{}, errs.NewError(errs.ErrNotInVoice)
	}

	members := s.channels[channel]
	i := indexOf(members, userID)
	members[i].Muted = muted
	return members[i], s.rosterLocked(channel), nil
}

// Roster returns the members of channel. An unknown channel has no members.
func (s *State) Roster(channel string) Roster {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rosterLocked(channel)
}

func (s *State) rosterLocked(channel string) Roster {
	return Roster{Channel: channel, Members: slices.Clone(s.channels[channel])}
}

// ChannelOf returns the voice channel userID is in.
func (s *State) ChannelOf(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.where[userID]
	return channel, ok
}

// Evict empties channel and returns the roster it had.
func (s *State) Evict(channel string) Roster {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster := s.rosterLocked(channel)
	for _, m := range roster.Members {
		delete(s.where, m.UserID)
	}
	delete(s.channels, channel)
	return roster
}

func indexOf(members []Member, userID string) int {
	return slices.IndexFunc(members, func(m Member) bool { return m.UserID == userID })
}
