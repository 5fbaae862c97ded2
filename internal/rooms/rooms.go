// Package rooms implements the session registry: room creation, join and
// invite authorisation, capacity enforcement, and the single
// waiting→running transition driven by the match launcher.
package rooms

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gamehall/lobby/internal/catalog"
)

// State enumerates the room lifecycle. A room moves waiting→running exactly
// once and never reverts; finished rooms linger until the reap TTL expires.
type State string

const (
	StateWaiting  State = "waiting"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Visibility controls who may join a room.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

var (
	// ErrRoomNotFound signals an unknown room identifier.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomStarted signals a mutation attempted after the room left waiting.
	ErrRoomStarted = errors.New("room already started")
	// ErrRoomFull signals the room reached its configured capacity.
	ErrRoomFull = errors.New("room full")
	// ErrPrivateRoom signals a join by an identity that is neither host nor invited.
	ErrPrivateRoom = errors.New("private room forbidden")
	// ErrNotHost signals a host-only operation attempted by another identity.
	ErrNotHost = errors.New("only the host may do this")
	// ErrNotInvited signals an accept for an invite that does not exist.
	ErrNotInvited = errors.New("no pending invite")
	// ErrNotPrivate signals invite management on a public room.
	ErrNotPrivate = errors.New("invites apply to private rooms only")
	// ErrNotEnoughPlayers signals a start below the game's minimum seat count.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	// ErrStartInProgress signals a concurrent start attempt on the same room.
	ErrStartInProgress = errors.New("start already in progress")
	// ErrNotParticipant signals a chat append by a non-participant.
	ErrNotParticipant = errors.New("not a room participant")
)

// chatLimit bounds the per-room chat log.
const chatLimit = 200

// ChatEntry is one room chat message.
type ChatEntry struct {
	User    string `json:"user"`
	Message string `json:"msg"`
	SentAt  int64  `json:"ts"`
}

// Snapshot is a stable copy of room state for listings and responses.
type Snapshot struct {
	ID         int        `json:"room_id"`
	GameID     int        `json:"game_id"`
	Host       string     `json:"host"`
	Visibility Visibility `json:"type"`
	Players    []string   `json:"players"`
	Capacity   int        `json:"max_players"`
	State      State      `json:"status"`
	Port       int        `json:"port,omitempty"`
}

// room is the internal mutable record. Player order is insertion order and
// doubles as seat order for turn-based matches.
type room struct {
	id         int
	gameID     int
	host       string
	visibility Visibility
	players    []string
	minSeats   int
	capacity   int
	state      State
	port       int
	starting   bool
	invites    map[string]struct{}
	chat       []ChatEntry
	reapAt     time.Time
}

// Catalog is the slice of the game store the registry needs for capacity.
type Catalog interface {
	Lookup(gameID int) (catalog.Manifest, error)
}

// LaunchFunc turns a waiting room into a listening match process. It blocks
// for up to the readiness deadline and returns the bound port.
type LaunchFunc func(snapshot Snapshot) (int, error)

// Registry owns all rooms. Every read-modify-write sequence is serialised
// under its lock; the lock is never held across a launch call.
type Registry struct {
	mu      sync.Mutex
	rooms   map[int]*room
	nextID  int
	catalog Catalog
	ttl     time.Duration
	now     func() time.Time
}

// Option configures optional Registry behaviour at construction time.
type Option func(*Registry)

// WithClock injects a deterministic clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithRoomTTL overrides how long finished rooms are retained before reaping.
func WithRoomTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRegistry constructs an empty registry backed by the provided catalog.
func NewRegistry(cat Catalog, opts ...Option) *Registry {
	registry := &Registry{
		rooms:   make(map[int]*room),
		nextID:  1,
		catalog: cat,
		ttl:     10 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	return registry
}

// Create opens a new room with the host auto-joined as the first participant.
// Capacity comes from the game's registered metadata.
func (r *Registry) Create(gameID int, host string, visibility Visibility) (Snapshot, error) {
	if host == "" {
		return Snapshot{}, fmt.Errorf("host identity must not be empty")
	}
	manifest, err := r.catalog.Lookup(gameID)
	if err != nil {
		return Snapshot{}, err
	}
	if visibility != VisibilityPrivate {
		visibility = VisibilityPublic
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reapLocked()

	rm := &room{
		id:         r.nextID,
		gameID:     gameID,
		host:       host,
		visibility: visibility,
		players:    []string{host},
		minSeats:   manifest.MinPlayers,
		capacity:   manifest.MaxPlayers,
		state:      StateWaiting,
		invites:    make(map[string]struct{}),
	}
	r.nextID++
	r.rooms[rm.id] = rm
	return snapshotOf(rm), nil
}

// Join appends the identity to a waiting room, enforcing capacity and the
// private-room rule. Joining a room the identity already occupies succeeds
// without effect.
func (r *Registry) Join(roomID int, identity string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	return r.joinLocked(rm, identity, false)
}

// Invite records a pending invite on a private room. Host only.
func (r *Registry) Invite(roomID int, host, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		return err
	}
	if rm.host != host {
		return ErrNotHost
	}
	if rm.visibility != VisibilityPrivate {
		return ErrNotPrivate
	}
	if rm.state != StateWaiting {
		return ErrRoomStarted
	}
	if contains(rm.players, target) {
		return fmt.Errorf("%s is already in room %d", target, roomID)
	}
	rm.invites[target] = struct{}{}
	return nil
}

// AcceptInvite consumes a pending invite and performs the same checks as a
// join. The invite is only consumed when the join succeeds.
func (r *Registry) AcceptInvite(roomID int, identity string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	if _, ok := rm.invites[identity]; !ok {
		return Snapshot{}, ErrNotInvited
	}
	snapshot, err := r.joinLocked(rm, identity, true)
	if err != nil {
		return Snapshot{}, err
	}
	delete(rm.invites, identity)
	return snapshot, nil
}

// RevokeInvite removes a pending invite. Host only.
func (r *Registry) RevokeInvite(roomID int, host, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		return err
	}
	if rm.host != host {
		return ErrNotHost
	}
	if _, ok := rm.invites[target]; !ok {
		return ErrNotInvited
	}
	delete(rm.invites, target)
	return nil
}

// InvitesFor lists the rooms holding a pending invite for the identity.
func (r *Registry) InvitesFor(identity string) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Snapshot
	for _, rm := range r.rooms {
		if _, ok := rm.invites[identity]; ok {
			out = append(out, snapshotOf(rm))
		}
	}
	return out
}

// Start launches the room's match. The caller must be the host, the room
// must still be waiting, and the game's minimum seat count must be present.
// The launch callback runs without the registry lock held; on failure the
// room stays waiting with no port recorded so the host can retry.
func (r *Registry) Start(roomID int, caller string, launch LaunchFunc) (Snapshot, error) {
	r.mu.Lock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		r.mu.Unlock()
		return Snapshot{}, err
	}
	if rm.host != caller {
		r.mu.Unlock()
		return Snapshot{}, ErrNotHost
	}
	if rm.state != StateWaiting {
		r.mu.Unlock()
		return Snapshot{}, ErrRoomStarted
	}
	if len(rm.players) < rm.minSeats {
		r.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, len(rm.players), rm.minSeats)
	}
	if rm.starting {
		r.mu.Unlock()
		return Snapshot{}, ErrStartInProgress
	}
	//1.- Mark the start in flight and release the lock before the launcher
	// blocks on its multi-second readiness probe.
	rm.starting = true
	pending := snapshotOf(rm)
	r.mu.Unlock()

	port, launchErr := launch(pending)

	r.mu.Lock()
	defer r.mu.Unlock()
	rm.starting = false
	if launchErr != nil {
		//2.- Leave the room waiting with no partial state so a retry is possible.
		return Snapshot{}, launchErr
	}
	rm.state = StateRunning
	rm.port = port
	return snapshotOf(rm), nil
}

// Finish marks a running room finished and stamps its reap deadline.
func (r *Registry) Finish(roomID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.state = StateFinished
	rm.reapAt = r.now().Add(r.ttl)
	return nil
}

// Get returns a snapshot of one room.
func (r *Registry) Get(roomID int) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(rm), nil
}

// List snapshots every room ordered by identifier.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reapLocked()
	out := make([]Snapshot, 0, len(r.rooms))
	for id := 1; id < r.nextID; id++ {
		if rm, ok := r.rooms[id]; ok {
			out = append(out, snapshotOf(rm))
		}
	}
	return out
}

// AppendChat records a chat message from a participant, keeping the log
// bounded to the most recent entries.
func (r *Registry) AppendChat(roomID int, identity, message string) (ChatEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		return ChatEntry{}, err
	}
	if !contains(rm.players, identity) {
		return ChatEntry{}, ErrNotParticipant
	}
	entry := ChatEntry{User: identity, Message: message, SentAt: r.now().Unix()}
	rm.chat = append(rm.chat, entry)
	if len(rm.chat) > chatLimit {
		rm.chat = rm.chat[len(rm.chat)-chatLimit:]
	}
	return entry, nil
}

// Chat returns a copy of the room's chat log.
func (r *Registry) Chat(roomID int) ([]ChatEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, err := r.roomLocked(roomID)
	if err != nil {
		return nil, err
	}
	return append([]ChatEntry(nil), rm.chat...), nil
}

func (r *Registry) joinLocked(rm *room, identity string, invited bool) (Snapshot, error) {
	if identity == "" {
		return Snapshot{}, fmt.Errorf("identity must not be empty")
	}
	if contains(rm.players, identity) {
		return snapshotOf(rm), nil
	}
	if rm.state != StateWaiting {
		return Snapshot{}, ErrRoomStarted
	}
	if len(rm.players) >= rm.capacity {
		return Snapshot{}, fmt.Errorf("%w: capacity %d", ErrRoomFull, rm.capacity)
	}
	if rm.visibility == VisibilityPrivate && identity != rm.host && !invited {
		return Snapshot{}, ErrPrivateRoom
	}
	rm.players = append(rm.players, identity)
	return snapshotOf(rm), nil
}

func (r *Registry) roomLocked(roomID int) (*room, error) {
	r.reapLocked()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRoomNotFound, roomID)
	}
	return rm, nil
}

// reapLocked drops finished rooms whose TTL has elapsed.
func (r *Registry) reapLocked() {
	now := r.now()
	for id, rm := range r.rooms {
		if rm.state == StateFinished && !rm.reapAt.IsZero() && now.After(rm.reapAt) {
			delete(r.rooms, id)
		}
	}
}

func snapshotOf(rm *room) Snapshot {
	return Snapshot{
		ID:         rm.id,
		GameID:     rm.gameID,
		Host:       rm.host,
		Visibility: rm.visibility,
		Players:    append([]string(nil), rm.players...),
		Capacity:   rm.capacity,
		State:      rm.state,
		Port:       rm.port,
	}
}

func contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}
