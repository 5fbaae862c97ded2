package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderSubstitutesDeclaredPlaceholders(t *testing.T) {
	m := Manifest{
		ID:      1,
		Command: []string{"./matchd", "--host", "{host}", "--port", "{port}", "--room-id", "{room_id}", "--seed", "{seed}"},
	}
	rendered, err := Render(m, Vars{Host: "127.0.0.1", Port: 19000, RoomID: 7, Seed: 42})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := []string{"./matchd", "--host", "127.0.0.1", "--port", "19000", "--room-id", "7", "--seed", "42"}
	if len(rendered) != len(want) {
		t.Fatalf("unexpected token count: %v", rendered)
	}
	for i := range want {
		if rendered[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, rendered[i], want[i])
		}
	}
}

func TestRenderRejectsUnknownPlaceholder(t *testing.T) {
	m := Manifest{Command: []string{"--mode", "{mode}"}}
	if _, err := Render(m, Vars{}); !errors.Is(err, ErrUnknownPlaceholder) {
		t.Fatalf("expected unknown placeholder error, got %v", err)
	}
}

func TestRenderUsesExtraArgs(t *testing.T) {
	m := Manifest{Command: []string{"--mode", "{mode}"}, ExtraArgs: map[string]string{"mode": "ranked"}}
	rendered, err := Render(m, Vars{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rendered[1] != "ranked" {
		t.Fatalf("extra arg not substituted: %v", rendered)
	}
}

func TestStoreLookupAndDefaults(t *testing.T) {
	store := NewStore([]Manifest{{ID: 3, Name: "Ring Combat"}})
	m, err := store.Lookup(3)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if m.MinPlayers != 2 || m.MaxPlayers != 2 {
		t.Fatalf("two-seat default not applied: %+v", m)
	}
	if _, err := store.Lookup(99); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	payload := `[{"id":1,"name":"Blockfall","version":"1.0","install_path":"/srv/games/blockfall","command":["./blockfalld","--port","{port}"],"min_players":2,"max_players":2}]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	store, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if got := len(store.List()); got != 1 {
		t.Fatalf("expected 1 manifest, got %d", got)
	}
}

func TestBundledManifestsLaunchFromInstallPath(t *testing.T) {
	store, err := LoadFile(filepath.Join("..", "..", "games.json"))
	if err != nil {
		t.Fatalf("load bundled catalog: %v", err)
	}
	//1.- The launcher only sets the working directory; a bare binary name
	// would resolve via $PATH instead of the game's install path.
	for _, m := range store.List() {
		if len(m.Command) == 0 {
			t.Fatalf("manifest %d has no command", m.ID)
		}
		if !strings.HasPrefix(m.Command[0], "./") {
			t.Fatalf("manifest %d command %q is not install-path relative", m.ID, m.Command[0])
		}
	}
}
