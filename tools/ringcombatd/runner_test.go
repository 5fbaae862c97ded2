package ringcombatd

import (
	"encoding/json"
	"net"
	"testing"

	"gamehall/lobby/internal/proto"
	"gamehall/lobby/internal/results"
)

func TestReportToLobbySubmitsFramedResult(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan results.Report, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			return
		}
		conn := proto.NewConn(raw)
		env, err := conn.ReadEnvelope()
		if err != nil || env.Action != "report_result" {
			_ = conn.Close()
			return
		}
		var report results.Report
		_ = json.Unmarshal(env.Data, &report)
		received <- report
		_ = conn.WriteJSON(proto.OK(env.Action, nil))
		_ = conn.Close()
	}()

	report := results.Report{RoomID: 3, GameID: 1, Winners: []string{"ada"}, Losers: []string{"bob"}}
	if err := reportToLobby(ln.Addr().String(), report); err != nil {
		t.Fatalf("report: %v", err)
	}
	got := <-received
	if got.RoomID != 3 || got.Winners[0] != "ada" {
		t.Fatalf("unexpected report: %+v", got)
	}
}

func TestReportToLobbySkipsWhenUnconfigured(t *testing.T) {
	if err := reportToLobby("", results.Report{RoomID: 1}); err != nil {
		t.Fatalf("empty lobby address must be a no-op, got %v", err)
	}
}
