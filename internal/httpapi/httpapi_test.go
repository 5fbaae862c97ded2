package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gamehall/lobby/internal/accounts"
	"gamehall/lobby/internal/catalog"
	"gamehall/lobby/internal/events"
	"gamehall/lobby/internal/logging"
	"gamehall/lobby/internal/rooms"
)

type staticCounter int

func (c staticCounter) Count() int { return int(c) }

func newTestAPI(t *testing.T) (*httptest.Server, *events.Bus, *rooms.Registry) {
	t.Helper()
	games := catalog.NewStore([]catalog.Manifest{{
		ID: 1, Name: "blockfall", Version: "2.1",
		Command: []string{"./blockfalld", "--port", "{port}"}, MinPlayers: 2, MaxPlayers: 2,
	}})
	registry := rooms.NewRegistry(games)
	bus := events.NewBus()
	handler := NewRouter(Deps{
		Registry: registry,
		Games:    games,
		Accounts: accounts.New(time.Second),
		Bus:      bus,
		Results:  staticCounter(3),
		Logger:   logging.NewTestLogger(),
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, bus, registry
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestHealthAndListings(t *testing.T) {
	server, _, registry := newTestAPI(t)

	var health map[string]string
	getJSON(t, server.URL+"/healthz", &health)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health: %v", health)
	}

	if _, err := registry.Create(1, "ada", rooms.VisibilityPublic); err != nil {
		t.Fatalf("create room: %v", err)
	}

	var roomList struct {
		Rooms []rooms.Snapshot `json:"rooms"`
	}
	getJSON(t, server.URL+"/api/rooms", &roomList)
	if len(roomList.Rooms) != 1 || roomList.Rooms[0].Host != "ada" {
		t.Fatalf("unexpected rooms: %+v", roomList.Rooms)
	}

	var gameList struct {
		Games []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"games"`
	}
	getJSON(t, server.URL+"/api/games", &gameList)
	if len(gameList.Games) != 1 || gameList.Games[0].Name != "blockfall" {
		t.Fatalf("unexpected games: %+v", gameList.Games)
	}

	var stats map[string]int
	getJSON(t, server.URL+"/api/stats", &stats)
	if stats["rooms"] != 1 || stats["results"] != 3 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestEventFeedStreamsBusEvents(t *testing.T) {
	server, bus, _ := newTestAPI(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	//1.- Give the handler a moment to subscribe before publishing.
	time.Sleep(100 * time.Millisecond)
	bus.Publish(events.Event{Kind: events.KindRoomCreated, RoomID: 9, Host: "ada"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event events.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Kind != events.KindRoomCreated || event.RoomID != 9 {
		t.Fatalf("unexpected event: %+v", event)
	}
}
