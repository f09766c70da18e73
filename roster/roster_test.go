package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/guildkeeper/testutil"
)

func TestCharacterLifecycle(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	s := &Store{DB: database}
	const guild = "guild-rostertest"

	if _, err := database.ExecContext(ctx, `DELETE FROM characters WHERE guild_id=$1`, guild); err != nil {
		t.Fatalf("clean characters: %v", err)
	}

	if _, err := s.Get(ctx, guild, "alice"); !errors.Is(err, ErrNoCharacter) {
		t.Errorf("Get before set: err = %v, want ErrNoCharacter", err)
	}

	ch := Character{GuildID: guild, UserID: "alice", Name: "Seraphine", Archetype: "bard"}
	if err := s.Set(ctx, ch); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, guild, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Seraphine" || got.Archetype != "bard" {
		t.Errorf("got = %+v", got)
	}

	// Setting again replaces the single entry instead of adding a second.
	ch.Name = "Morrigan"
	ch.Archetype = ""
	if err := s.Set(ctx, ch); err != nil {
		t.Fatalf("Set replace: %v", err)
	}
	list, err := s.List(ctx, guild)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Morrigan" || list[0].Archetype != "" {
		t.Errorf("list = %+v, want single replaced entry", list)
	}

	if err := s.Delete(ctx, guild, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, guild, "alice"); err != nil {
		t.Errorf("Delete twice: %v", err)
	}
	if _, err := s.Get(ctx, guild, "alice"); !errors.Is(err, ErrNoCharacter) {
		t.Errorf("Get after delete: err = %v, want ErrNoCharacter", err)
	}
}

func TestSetValidates(t *testing.T) {
	s := &Store{}
	if err := s.Set(context.Background(), Character{GuildID: "g", UserID: "u"}); err == nil {
		t.Error("Set without name succeeded")
	}
}
