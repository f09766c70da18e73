package voicechannel

import "testing"

func TestOwnershipCacheBasics(t *testing.T) {
	c := NewOwnershipCache()

	if _, ok := c.OwnerOf("chan1"); ok {
		t.Error("empty cache returned an owner")
	}

	c.Put("chan1", "alice")
	c.Put("chan2", "bob")

	owner, ok := c.OwnerOf("chan1")
	if !ok || owner != "alice" {
		t.Errorf("OwnerOf(chan1) = %q,%v, want alice,true", owner, ok)
	}

	ch, ok := c.ChannelOwnedBy("bob")
	if !ok || ch != "chan2" {
		t.Errorf("ChannelOwnedBy(bob) = %q,%v, want chan2,true", ch, ok)
	}

	if _, ok := c.ChannelOwnedBy("carol"); ok {
		t.Error("ChannelOwnedBy returned a channel for an unknown user")
	}

	if n := c.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestOwnershipCachePutOverwrites(t *testing.T) {
	c := NewOwnershipCache()
	c.Put("chan1", "alice")
	c.Put("chan1", "bob")

	owner, _ := c.OwnerOf("chan1")
	if owner != "bob" {
		t.Errorf("OwnerOf after overwrite = %q, want bob", owner)
	}
	if n := c.Len(); n != 1 {
		t.Errorf("Len after overwrite = %d, want 1", n)
	}
}

func TestOwnershipCacheRemoveIdempotent(t *testing.T) {
	c := NewOwnershipCache()
	c.Put("chan1", "alice")
	c.Remove("chan1")
	c.Remove("chan1") // absent; must not panic
	if _, ok := c.OwnerOf("chan1"); ok {
		t.Error("OwnerOf returned an owner after Remove")
	}
}

func TestOwnershipCacheSnapshotIsCopy(t *testing.T) {
	c := NewOwnershipCache()
	c.Put("chan1", "alice")
	snap := c.Snapshot()
	snap["chan1"] = "mallory"
	if owner, _ := c.OwnerOf("chan1"); owner != "alice" {
		t.Errorf("mutating snapshot leaked into cache: owner = %q", owner)
	}
}
