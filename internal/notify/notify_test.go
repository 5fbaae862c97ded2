package notify

import (
	"encoding/json"
	"testing"

	"gamehall/lobby/internal/logging"
	"gamehall/lobby/internal/rooms"
)

type recordingDeliverer struct {
	delivered map[string][][]byte
	offline   map[string]bool
}

func (r *recordingDeliverer) Deliver(identity string, payload []byte) int {
	if r.offline[identity] {
		return 0
	}
	if r.delivered == nil {
		r.delivered = make(map[string][][]byte)
	}
	r.delivered[identity] = append(r.delivered[identity], payload)
	return 1
}

func TestMatchReadySkipsCaller(t *testing.T) {
	dir := &recordingDeliverer{}
	fan := New(dir, logging.NewTestLogger())

	room := rooms.Snapshot{ID: 9, GameID: 2, Port: 19100, Players: []string{"ada", "bob", "carl"}}
	if got := fan.MatchReady(room, "ada"); got != 2 {
		t.Fatalf("expected 2 participants reached, got %d", got)
	}
	if len(dir.delivered["ada"]) != 0 {
		t.Fatalf("caller must not receive the push")
	}
	if len(dir.delivered["bob"]) != 1 || len(dir.delivered["carl"]) != 1 {
		t.Fatalf("each participant should receive exactly one push: %+v", dir.delivered)
	}

	var env struct {
		Action string      `json:"action"`
		Data   GameStarted `json:"data"`
	}
	if err := json.Unmarshal(dir.delivered["bob"][0], &env); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if env.Action != "game_started" || env.Data.Port != 19100 || env.Data.RoomID != 9 {
		t.Fatalf("unexpected push payload: %+v", env)
	}
}

func TestMatchReadyToleratesOfflineParticipants(t *testing.T) {
	dir := &recordingDeliverer{offline: map[string]bool{"bob": true}}
	fan := New(dir, logging.NewTestLogger())

	room := rooms.Snapshot{ID: 9, Port: 19100, Players: []string{"ada", "bob"}}
	if got := fan.MatchReady(room, "ada"); got != 0 {
		t.Fatalf("offline participant should count as unreachable, got %d", got)
	}
}
