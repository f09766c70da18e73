package gateway

import "testing"

func TestVoiceTrackerSetAndCount(t *testing.T) {
	tr := NewVoiceTracker()

	tr.Set("alice", "chan-1")
	tr.Set("bob", "chan-1")
	tr.Set("carol", "chan-2")

	if n := tr.Count("chan-1"); n != 2 {
		t.Errorf("Count(chan-1) = %d, want 2", n)
	}
	if n := tr.Count("chan-2"); n != 1 {
		t.Errorf("Count(chan-2) = %d, want 1", n)
	}
	if n := tr.Count("chan-unknown"); n != 0 {
		t.Errorf("Count(unknown) = %d, want 0", n)
	}
}

func TestVoiceTrackerMove(t *testing.T) {
	tr := NewVoiceTracker()
	tr.Set("alice", "chan-1")
	tr.Set("alice", "chan-2")

	if n := tr.Count("chan-1"); n != 0 {
		t.Errorf("Count(chan-1) after move = %d, want 0", n)
	}
	ch, ok := tr.ChannelOf("alice")
	if !ok || ch != "chan-2" {
		t.Errorf("ChannelOf(alice) = %q,%v, want chan-2,true", ch, ok)
	}
}

func TestVoiceTrackerDisconnect(t *testing.T) {
	tr := NewVoiceTracker()
	tr.Set("alice", "chan-1")
	tr.Set("alice", "") // null channel_id on the wire

	if n := tr.Count("chan-1"); n != 0 {
		t.Errorf("Count after disconnect = %d, want 0", n)
	}
	if _, ok := tr.ChannelOf("alice"); ok {
		t.Error("ChannelOf returned a channel after disconnect")
	}
	// Disconnecting an untracked user must not panic.
	tr.Set("ghost", "")
}

func TestVoiceTrackerSeed(t *testing.T) {
	tr := NewVoiceTracker()
	tr.Set("stale", "chan-old")

	tr.Seed([]VoiceState{
		{UserID: "alice", ChannelID: "chan-1"},
		{UserID: "bob", ChannelID: "chan-1"},
		{UserID: "afk", ChannelID: ""},
	})

	if n := tr.Count("chan-old"); n != 0 {
		t.Errorf("stale state survived seed: Count(chan-old) = %d", n)
	}
	if n := tr.Count("chan-1"); n != 2 {
		t.Errorf("Count(chan-1) after seed = %d, want 2", n)
	}
}
