// Package catalog resolves game identifiers to typed launch manifests. The
// lobby consumes it as the narrow interface onto the game package store.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ErrGameNotFound signals an unknown game identifier.
var ErrGameNotFound = errors.New("game not found")

// ErrUnknownPlaceholder signals a command token referencing an undeclared variable.
var ErrUnknownPlaceholder = errors.New("unknown command placeholder")

// Manifest describes one installed game package and how to launch it.
type Manifest struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	InstallPath string            `json:"install_path"`
	Command     []string          `json:"command"`
	MinPlayers  int               `json:"min_players"`
	MaxPlayers  int               `json:"max_players"`
	ExtraArgs   map[string]string `json:"extra_args,omitempty"`
}

// Vars holds the placeholder values substituted into a command template.
type Vars struct {
	Host   string
	Port   int
	RoomID int
	Seed   int64
}

// Render substitutes declared placeholders into the manifest command tokens.
// It is a pure function: unknown placeholders error out rather than passing
// through, so a typo in a manifest fails at launch instead of at runtime.
func Render(m Manifest, vars Vars) ([]string, error) {
	values := map[string]string{
		"host":    vars.Host,
		"port":    fmt.Sprintf("%d", vars.Port),
		"room_id": fmt.Sprintf("%d", vars.RoomID),
		"seed":    fmt.Sprintf("%d", vars.Seed),
	}
	for k, v := range m.ExtraArgs {
		values[k] = v
	}

	rendered := make([]string, 0, len(m.Command))
	for _, token := range m.Command {
		out, err := substitute(token, values)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, out)
	}
	return rendered, nil
}

// substitute replaces every {name} occurrence in the token with its value.
func substitute(token string, values map[string]string) (string, error) {
	var sb strings.Builder
	rest := token
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		name := rest[open+1 : open+closing]
		value, ok := values[name]
		if !ok {
			return "", fmt.Errorf("%w: {%s}", ErrUnknownPlaceholder, name)
		}
		sb.WriteString(rest[:open])
		sb.WriteString(value)
		rest = rest[open+closing+1:]
	}
}

// Store serves manifest lookups for the lobby and launcher.
type Store struct {
	mu        sync.RWMutex
	manifests map[int]Manifest
}

// NewStore constructs a store preloaded with the provided manifests.
func NewStore(manifests []Manifest) *Store {
	store := &Store{manifests: make(map[int]Manifest, len(manifests))}
	for _, m := range manifests {
		store.manifests[m.ID] = normalise(m)
	}
	return store
}

// LoadFile reads a JSON array of manifests from disk.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var manifests []Manifest
	if err := json.Unmarshal(data, &manifests); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewStore(manifests), nil
}

// Lookup returns the manifest registered under the game identifier.
func (s *Store) Lookup(gameID int) (Manifest, error) {
	if s == nil {
		return Manifest{}, ErrGameNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[gameID]
	if !ok {
		return Manifest{}, fmt.Errorf("%w: %d", ErrGameNotFound, gameID)
	}
	return m, nil
}

// Register adds or replaces a manifest, returning the normalised copy.
func (s *Store) Register(m Manifest) Manifest {
	if s == nil {
		return m
	}
	normalised := normalise(m)
	s.mu.Lock()
	s.manifests[normalised.ID] = normalised
	s.mu.Unlock()
	return normalised
}

// List returns all manifests ordered by identifier.
func (s *Store) List() []Manifest {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Manifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// normalise applies the two-seat default so capacity lookups never see zero.
func normalise(m Manifest) Manifest {
	if m.MinPlayers < 2 {
		m.MinPlayers = 2
	}
	if m.MaxPlayers < m.MinPlayers {
		m.MaxPlayers = m.MinPlayers
	}
	return m
}
