// Package notify pushes match-ready announcements to room participants
// through the connection directory.
package notify

import (
	"encoding/json"

	"go.uber.org/zap"

	"gamehall/lobby/internal/rooms"
)

// Deliverer is the directory surface the fan-out depends on.
type Deliverer interface {
	Deliver(identity string, payload []byte) int
}

// GameStarted is the push payload announcing a ready match.
type GameStarted struct {
	RoomID int `json:"room_id"`
	Port   int `json:"port"`
	GameID int `json:"game_id"`
}

// Fanout broadcasts lifecycle pushes. Delivery is best-effort: failures are
// logged by the directory and never fail the operation that triggered them.
type Fanout struct {
	directory Deliverer
	logger    *zap.Logger
}

// New constructs a fan-out over the given directory.
func New(directory Deliverer, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{directory: directory, logger: logger}
}

// MatchReady informs every participant except the caller that their match is
// listening. Returns the number of identities that received at least one copy.
func (f *Fanout) MatchReady(room rooms.Snapshot, caller string) int {
	if f == nil || f.directory == nil {
		return 0
	}
	payload, err := json.Marshal(map[string]any{
		"action": "game_started",
		"data":   GameStarted{RoomID: room.ID, Port: room.Port, GameID: room.GameID},
	})
	if err != nil {
		return 0
	}

	reached := 0
	for _, identity := range room.Players {
		if identity == caller {
			continue
		}
		if f.directory.Deliver(identity, payload) > 0 {
			reached++
		} else {
			f.logger.Info("participant unreachable for match-ready push",
				zap.Int("room_id", room.ID),
				zap.String("identity", identity))
		}
	}
	return reached
}
