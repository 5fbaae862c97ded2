package server

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"gamehall/lobby/internal/directory"
	"gamehall/lobby/internal/events"
	"gamehall/lobby/internal/proto"
	"gamehall/lobby/internal/results"
	"gamehall/lobby/internal/rooms"
)

// Request payload shapes. Field names mirror the wire protocol.
type (
	credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role,omitempty"`
	}
	roleFilter struct {
		Role string `json:"role,omitempty"`
	}
	createRoomReq struct {
		GameID     int    `json:"game_id"`
		Visibility string `json:"type,omitempty"`
	}
	roomRef struct {
		RoomID int `json:"room_id"`
	}
	inviteReq struct {
		RoomID   int    `json:"room_id"`
		Username string `json:"username"`
	}
	chatSendReq struct {
		RoomID  int    `json:"room_id"`
		Message string `json:"msg"`
	}
	attachReq struct {
		Username string `json:"username,omitempty"`
	}
)

// gameView is the catalog slice exposed to clients; launch internals such as
// the command template stay server-side.
type gameView struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	MinPlayers int    `json:"min_players"`
	MaxPlayers int    `json:"max_players"`
}

func (s *Server) dispatch(ctx context.Context, sess *session, env proto.Envelope) proto.Response {
	switch env.Action {
	case "register":
		return s.register(env)
	case "login":
		return s.login(sess, env)
	case "logout":
		return s.logout(sess, env)
	case "list_online":
		return s.listOnline(sess, env)
	case "list_games":
		return s.listGames(sess, env)
	case "list_rooms":
		return s.listRooms(sess, env)
	case "create_room":
		return s.createRoom(sess, env)
	case "join_room":
		return s.joinRoom(sess, env)
	case "invite":
		return s.invite(sess, env)
	case "accept_invite":
		return s.acceptInvite(sess, env)
	case "revoke_invite":
		return s.revokeInvite(sess, env)
	case "list_invites":
		return s.listInvites(sess, env)
	case "start_game":
		return s.startGame(ctx, sess, env)
	case "chat_send":
		return s.chatSend(sess, env)
	case "chat_history":
		return s.chatHistory(sess, env)
	case "attach_notifier":
		return s.attachNotifier(sess, env)
	case "report_result":
		return s.reportResult(env)
	default:
		return proto.Error(env.Action, "unknown action")
	}
}

func (s *Server) register(env proto.Envelope) proto.Response {
	var creds credentials
	if err := decode(env, &creds); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	role := creds.Role
	if role == "" {
		role = "player"
	}
	if err := s.deps.Accounts.Register(creds.Username, creds.Password, role); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	s.log.Info("account registered", zap.String("user", creds.Username), zap.String("role", role))
	return proto.OK(env.Action, map[string]string{"username": creds.Username})
}

func (s *Server) login(sess *session, env proto.Envelope) proto.Response {
	var creds credentials
	if err := decode(env, &creds); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	if err := s.deps.Accounts.Login(creds.Username, creds.Password); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	if sess.user != "" && sess.user != creds.Username {
		//1.- Re-login under a new identity releases the old attachment first.
		s.deps.Directory.Detach(sess.user, sess.conn)
	}
	sess.user = creds.Username
	sess.notifier = false
	s.deps.Directory.Attach(sess.user, sess.conn, directory.RolePrimary)
	s.log.Info("login", zap.String("user", sess.user))
	return proto.OK(env.Action, map[string]string{"username": sess.user})
}

func (s *Server) logout(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	s.deps.Directory.Detach(sess.user, sess.conn)
	s.deps.Accounts.Logout(sess.user)
	s.log.Info("logout", zap.String("user", sess.user))
	sess.user = ""
	return proto.OK(env.Action, nil)
}

func (s *Server) listOnline(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var filter roleFilter
	if err := decode(env, &filter); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	users := s.deps.Accounts.Online(filter.Role)
	return proto.OK(env.Action, map[string]any{"users": users})
}

func (s *Server) listGames(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	manifests := s.deps.Games.List()
	views := make([]gameView, 0, len(manifests))
	for _, m := range manifests {
		views = append(views, gameView{
			ID: m.ID, Name: m.Name, Version: m.Version,
			MinPlayers: m.MinPlayers, MaxPlayers: m.MaxPlayers,
		})
	}
	return proto.OK(env.Action, map[string]any{"games": views})
}

func (s *Server) listRooms(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	return proto.OK(env.Action, map[string]any{"rooms": s.deps.Registry.List()})
}

func (s *Server) createRoom(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req createRoomReq
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	snapshot, err := s.deps.Registry.Create(req.GameID, sess.user, rooms.Visibility(req.Visibility))
	if err != nil {
		return proto.Error(env.Action, err.Error())
	}
	s.deps.Bus.Publish(events.Event{
		Kind: events.KindRoomCreated, RoomID: snapshot.ID, GameID: snapshot.GameID, Host: snapshot.Host,
	})
	return proto.OK(env.Action, snapshot)
}

func (s *Server) joinRoom(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req roomRef
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	snapshot, err := s.deps.Registry.Join(req.RoomID, sess.user)
	if err != nil {
		return proto.Error(env.Action, err.Error())
	}
	return proto.OK(env.Action, snapshot)
}

func (s *Server) invite(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req inviteReq
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	if err := s.deps.Registry.Invite(req.RoomID, sess.user, req.Username); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	//1.- Best-effort heads-up to the invitee; the invite stands either way.
	if payload, err := json.Marshal(proto.Envelope{
		Action: "invite_received",
		Data:   mustJSON(map[string]any{"room_id": req.RoomID, "from": sess.user}),
	}); err == nil {
		s.deps.Directory.Deliver(req.Username, payload)
	}
	return proto.OK(env.Action, nil)
}

func (s *Server) acceptInvite(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req roomRef
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	snapshot, err := s.deps.Registry.AcceptInvite(req.RoomID, sess.user)
	if err != nil {
		return proto.Error(env.Action, err.Error())
	}
	return proto.OK(env.Action, snapshot)
}

func (s *Server) revokeInvite(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req inviteReq
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	if err := s.deps.Registry.RevokeInvite(req.RoomID, sess.user, req.Username); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	return proto.OK(env.Action, nil)
}

func (s *Server) listInvites(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	return proto.OK(env.Action, map[string]any{"invites": s.deps.Registry.InvitesFor(sess.user)})
}

func (s *Server) startGame(ctx context.Context, sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req roomRef
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	snapshot, err := s.deps.Registry.Start(req.RoomID, sess.user, func(pending rooms.Snapshot) (int, error) {
		return s.deps.Launcher.Launch(ctx, pending)
	})
	if err != nil {
		return proto.Error(env.Action, err.Error())
	}

	reached := s.deps.Fanout.MatchReady(snapshot, sess.user)
	s.deps.Bus.Publish(events.Event{
		Kind: events.KindRoomStarted, RoomID: snapshot.ID, GameID: snapshot.GameID,
		Host: snapshot.Host, Port: snapshot.Port,
	})
	s.log.Info("match started",
		zap.Int("room_id", snapshot.ID),
		zap.Int("port", snapshot.Port),
		zap.Int("notified", reached))
	return proto.OK(env.Action, snapshot)
}

func (s *Server) chatSend(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req chatSendReq
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	entry, err := s.deps.Registry.AppendChat(req.RoomID, sess.user, req.Message)
	if err != nil {
		return proto.Error(env.Action, err.Error())
	}

	//1.- Relay to the other participants; the sender gets the ok response.
	snapshot, err := s.deps.Registry.Get(req.RoomID)
	if err == nil {
		payload, merr := json.Marshal(proto.Envelope{
			Action: "chat_message",
			Data:   mustJSON(map[string]any{"room_id": req.RoomID, "user": entry.User, "msg": entry.Message, "ts": entry.SentAt}),
		})
		if merr == nil {
			for _, participant := range snapshot.Players {
				if participant != sess.user {
					s.deps.Directory.Deliver(participant, payload)
				}
			}
		}
	}
	return proto.OK(env.Action, entry)
}

func (s *Server) chatHistory(sess *session, env proto.Envelope) proto.Response {
	if resp, ok := s.requireAuth(sess, env); !ok {
		return resp
	}
	var req roomRef
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	entries, err := s.deps.Registry.Chat(req.RoomID)
	if err != nil {
		return proto.Error(env.Action, err.Error())
	}
	return proto.OK(env.Action, map[string]any{"messages": entries})
}

// attachNotifier binds this connection as a push-only handle. The identity
// comes from the session when the socket already logged in, otherwise from
// the payload provided the account is online elsewhere.
func (s *Server) attachNotifier(sess *session, env proto.Envelope) proto.Response {
	var req attachReq
	if err := decode(env, &req); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	identity := sess.user
	if identity == "" {
		identity = req.Username
		if identity == "" || !s.deps.Accounts.IsOnline(identity) {
			return proto.Error(env.Action, "login required")
		}
		sess.user = identity
		sess.notifier = true
	}
	s.deps.Directory.Attach(identity, sess.conn, directory.RoleNotifier)
	s.log.Info("notifier attached", zap.String("user", identity))
	return proto.OK(env.Action, nil)
}

// reportResult accepts the out-of-band final outcome from a match process,
// journals it, finishes the room, and reaps the process record.
func (s *Server) reportResult(env proto.Envelope) proto.Response {
	var report results.Report
	if err := decode(env, &report); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	if report.RoomID <= 0 {
		return proto.Error(env.Action, "room_id must be provided")
	}
	if err := s.deps.Results.Append(report); err != nil {
		return proto.Error(env.Action, err.Error())
	}
	if err := s.deps.Registry.Finish(report.RoomID); err != nil && !errors.Is(err, rooms.ErrRoomNotFound) {
		return proto.Error(env.Action, err.Error())
	}
	s.deps.Launcher.Stop(report.RoomID)
	s.deps.Bus.Publish(events.Event{
		Kind: events.KindRoomFinished, RoomID: report.RoomID, GameID: report.GameID,
	})
	s.log.Info("match result recorded",
		zap.Int("room_id", report.RoomID),
		zap.Strings("winners", report.Winners))
	return proto.OK(env.Action, nil)
}

// requireAuth rejects actions from sockets that have not logged in as a
// primary connection.
func (s *Server) requireAuth(sess *session, env proto.Envelope) (proto.Response, bool) {
	if sess.user == "" || sess.notifier {
		return proto.Error(env.Action, "login required"), false
	}
	return proto.Response{}, true
}

func decode(env proto.Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return errors.New("malformed request data")
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return payload
}
