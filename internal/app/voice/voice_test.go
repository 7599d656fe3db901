package voice_test

import (
	"sync"
	"testing"

	"originchats/internal/app/voice"
	"originchats/internal/pkg/errs"
)

func TestJoinMovesBetweenChannels(t *testing.T) {
	s := voice.NewState()

	dep, roster := s.Join("A", "u1", "alice", "peer1")
	if dep != nil {
		t.Fatalf("first join should not depart, got %+v", dep)
	}
	if len(roster.Members) != 1 || roster.Members[0].PeerID != "peer1" {
		t.Fatalf("unexpected roster: %+v", roster)
	}

	dep, roster = s.Join("B", "u1", "alice", "peer2")
	if dep == nil || dep.Channel != "A" || dep.Member.UserID != "u1" {
		t.Fatalf("expected implicit departure from A, got %+v", dep)
	}
	if len(dep.Before.Members) != 1 {
		t.Fatalf("departure should carry the roster before leaving, got %+v", dep.Before)
	}
	if roster.Channel != "B" || len(roster.Members) != 1 {
		t.Fatalf("unexpected roster for B: %+v", roster)
	}

	if ch, ok := s.ChannelOf("u1"); !ok || ch != "B" {
		t.Fatalf("user should be in B only, got %q %v", ch, ok)
	}
	if got := s.Roster("A"); len(got.Members) != 0 {
		t.Fatalf("A should be empty, got %+v", got)
	}
}

func TestRejoinSameChannelRefreshesPeer(t *testing.T) {
	s := voice.NewState()
	s.Join("A", "u1", "alice", "peer1")
	s.Join("A", "u2", "bob", "peer2")

	dep, roster := s.Join("A", "u1", "alice", "peer9")
	if dep != nil {
		t.Fatalf("rejoin should not depart, got %+v", dep)
	}
	if len(roster.Members) != 2 || roster.Members[0].PeerID != "peer9" {
		t.Fatalf("peer id should be refreshed in place, got %+v", roster.Members)
	}
}

func TestLeaveAndMute(t *testing.T) {
	s := voice.NewState()

	if dep := s.Leave("u1"); dep != nil {
		t.Fatalf("leave without membership should be nil, got %+v", dep)
	}
	if _, _, err := s.SetMuted("u1", true); errs.CodeOf(err) != errs.ErrNotInVoice {
		t.Fatalf("expected not in voice, got %v", err)
	}
	if _, ok := s.ChannelOf("u1"); ok {
		t.Fatal("failed mute must not create membership")
	}

	s.Join("A", "u1", "alice", "peer1")
	m, roster, err := s.SetMuted("u1", true)
	if err != nil || !m.Muted || !roster.Members[0].Muted {
		t.Fatalf("SetMuted: %+v %+v %v", m, roster, err)
	}

	dep := s.Leave("u1")
	if dep == nil || dep.Channel != "A" || !dep.Member.Muted {
		t.Fatalf("unexpected departure: %+v", dep)
	}
	if _, ok := s.ChannelOf("u1"); ok {
		t.Fatal("user should be gone")
	}
}

func TestEvictAndSnapshots(t *testing.T) {
	s := voice.NewState()
	s.Join("A", "u1", "alice", "p1")
	s.Join("A", "u2", "bob", "p2")

	roster := s.Roster("A")
	roster.Members[0].PeerID = "tampered"
	if s.Roster("A").Members[0].PeerID != "p1" {
		t.Fatal("roster must be a copy")
	}
	if pub := roster.Public(); pub[1].PeerID != "" {
		t.Fatal("public view must drop peer ids")
	}

	evicted := s.Evict("A")
	if len(evicted.Members) != 2 {
		t.Fatalf("Evict: %+v", evicted)
	}
	if _, ok := s.ChannelOf("u2"); ok {
		t.Fatal("evicted users must lose membership")
	}
}

func TestConcurrentJoins(t *testing.T) {
	s := voice.NewState()
	channels := []string{"A", "B", "C"}

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Join(channels[i%3], "u1", "alice", "p")
		}()
	}
	wg.Wait()

	total := 0
	for _, ch := range channels {
		total += len(s.Roster(ch).Members)
	}
	if total != 1 {
		t.Fatalf("user must be in exactly one channel, found %d memberships", total)
	}
}
