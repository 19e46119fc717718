// Package api wires RoomManager and GameEngine behind one WebSocket
// Dispatcher, translating each inbound message type into the matching
// call and replying or broadcasting its result. Grounded on the
// teacher's internal/handlers.Handler ("holds dependencies for HTTP
// handlers"), generalized from one method per HTTP route to one case
// per message type in a single switch, since every client here shares
// one socket instead of one route per action.
package api

import (
	"context"
	"encoding/json"
	"log"

	"treacherest/internal/engine"
	"treacherest/internal/model"
	"treacherest/internal/room"
	"treacherest/internal/transport"
)

// Handler holds the three collaborators every dispatched message needs.
type Handler struct {
	rooms  *room.Manager
	engine *engine.Engine
	bus    transport.EventBus
}

// New wires a Handler from its collaborators.
func New(rooms *room.Manager, eng *engine.Engine, bus transport.EventBus) *Handler {
	return &Handler{rooms: rooms, engine: eng, bus: bus}
}

// OnDisconnect implements transport.DisconnectFunc, flagging a dropped
// socket's room membership via RoomManager (spec §4.8 OnDisconnect). A
// connection that never joined a room (meta.RoomCode empty) is a no-op.
func (h *Handler) OnDisconnect(connID string, meta transport.ConnMeta) {
	if meta.RoomCode == "" {
		return
	}
	if err := h.rooms.OnDisconnect(context.Background(), meta.RoomCode, connID, meta.Role); err != nil {
		log.Printf("🏠 room: disconnect %s from %s: %v", connID, meta.RoomCode, err)
	}
}

// Dispatch implements transport.Dispatcher, routing msg.Type to the
// matching RoomManager/GameEngine call for connID's current meta.
func (h *Handler) Dispatch(connID string, meta transport.ConnMeta, msg transport.InboundMessage) {
	ctx := context.Background()
	requester := requesterID(connID, meta)

	switch msg.Type {
	case "room:create":
		h.handleCreateRoom(ctx, connID, msg.Payload)
	case "room:join":
		h.handleJoinRoom(ctx, meta, connID, msg.Payload)
	case "room:rejoin":
		h.handleRejoinRoom(ctx, connID, msg.Payload)
	case "room:leave":
		h.replyOnError(connID, "room:leave", h.rooms.LeaveRoom(ctx, meta.RoomCode, meta.PlayerID))
	case "room:kick":
		h.handleKickPlayer(ctx, meta, requester, connID, msg.Payload)
	case "room:update-settings":
		h.handleUpdateSettings(ctx, meta, requester, connID, msg.Payload)
	case "room:update-player":
		h.handleUpdatePlayer(ctx, meta, connID, msg.Payload)
	case "quiz:generate":
		h.handleGenerateQuiz(ctx, meta, requester, connID, msg.Payload)
	case "game:start":
		h.replyOnError(connID, "game:start", h.engine.StartGame(ctx, meta.RoomCode, requester))
	case "game:pause":
		h.replyOnError(connID, "game:pause", h.engine.Pause(ctx, meta.RoomCode, requester))
	case "game:resume":
		h.replyOnError(connID, "game:resume", h.engine.Resume(ctx, meta.RoomCode, requester))
	case "game:next-question":
		h.replyOnError(connID, "game:next-question", h.engine.NextQuestion(ctx, meta.RoomCode, requester))
	case "game:end":
		h.replyOnError(connID, "game:end", h.engine.End(ctx, meta.RoomCode, requester))
	case "game:restart":
		h.replyOnError(connID, "game:restart", h.engine.Restart(ctx, meta.RoomCode, requester))
	case "answer:submit":
		h.handleSubmitAnswer(ctx, meta, connID, msg.Payload)
	case "answer:timeout":
		h.replyOnError(connID, "answer:timeout", h.engine.AnswerTimeout(ctx, meta.RoomCode, requester))
	default:
		log.Printf("api: unknown message type %q from %s", msg.Type, connID)
	}
}

// requesterID resolves the id RoomManager/GameEngine authorize host-only
// calls against: a player's own id, or — since RebindHost reassigns
// Room.HostID to whichever connection currently holds the TV role — the
// connection's own id for a TV/host connection.
func requesterID(connID string, meta transport.ConnMeta) string {
	if meta.Role == transport.RolePlayer {
		return meta.PlayerID
	}
	return connID
}

func (h *Handler) replyOnError(connID, action string, err error) {
	if err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": action, "error": err.Error()})
	}
}

type createRoomPayload struct {
	HostName string `json:"hostName"`
}

func (h *Handler) handleCreateRoom(ctx context.Context, connID string, raw json.RawMessage) {
	var p createRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:create", "error": "invalid payload"})
		return
	}
	if _, err := h.rooms.CreateRoom(ctx, connID, p.HostName); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:create", "error": err.Error()})
	}
}

// joinRoomPayload matches spec.md §6.1's documented room:join shape:
// {roomCode, type:'tv'|'player', player?:{name,avatar,jingleId?}}. A
// "tv" join reconnects/rebinds the host connection to an existing room
// (spec SPEC_FULL.md §E.2); a "player" join (the default when Type is
// empty, for older clients) appends a new lobby player.
type joinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Type     string `json:"type"`
	Player   *struct {
		Name     string `json:"name"`
		Avatar   string `json:"avatar"`
		JingleID string `json:"jingleId"`
	} `json:"player"`
}

func (h *Handler) handleJoinRoom(ctx context.Context, meta transport.ConnMeta, connID string, raw json.RawMessage) {
	var p joinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:join", "error": "invalid payload"})
		return
	}

	if p.Type == "tv" {
		code := p.RoomCode
		if code == "" {
			code = meta.RoomCode
		}
		if _, err := h.rooms.RebindHost(ctx, code, connID); err != nil {
			h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:join", "error": err.Error()})
		}
		return
	}

	if p.Player == nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:join", "error": "player is required"})
		return
	}
	in := room.JoinInput{Name: p.Player.Name, Avatar: p.Player.Avatar, JingleID: p.Player.JingleID}
	if _, err := h.rooms.JoinRoom(ctx, p.RoomCode, in, connID); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:join", "error": err.Error()})
	}
}

// rejoinRoomPayload matches spec.md §6.1's documented room:rejoin shape:
// {roomCode, playerName, playerAvatar?, playerJingleId?} — distinct
// field names from room:join's nested player object.
type rejoinRoomPayload struct {
	RoomCode       string `json:"roomCode"`
	PlayerName     string `json:"playerName"`
	PlayerAvatar   string `json:"playerAvatar"`
	PlayerJingleID string `json:"playerJingleId"`
}

func (h *Handler) handleRejoinRoom(ctx context.Context, connID string, raw json.RawMessage) {
	var p rejoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:rejoin", "error": "invalid payload"})
		return
	}
	in := room.JoinInput{Name: p.PlayerName, Avatar: p.PlayerAvatar, JingleID: p.PlayerJingleID}
	if _, _, err := h.rooms.RejoinRoom(ctx, p.RoomCode, in, connID); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:rejoin", "error": err.Error()})
	}
}

// kickPayload matches spec.md §6.1's documented room:kick shape:
// {roomCode, playerId}.
type kickPayload struct {
	PlayerID string `json:"playerId"`
}

func (h *Handler) handleKickPlayer(ctx context.Context, meta transport.ConnMeta, requester, connID string, raw json.RawMessage) {
	var p kickPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:kick", "error": "invalid payload"})
		return
	}
	h.replyOnError(connID, "room:kick", h.rooms.KickPlayer(ctx, meta.RoomCode, requester, p.PlayerID))
}

type updateSettingsPayload struct {
	QuestionCount *int              `json:"questionCount"`
	TimeLimit     *int              `json:"timeLimit"`
	Difficulty    *model.Difficulty `json:"difficulty"`
	Category      *string           `json:"category"`
	MaxPlayers    *int              `json:"maxPlayers"`
	MinPlayers    *int              `json:"minPlayers"`
}

func (h *Handler) handleUpdateSettings(ctx context.Context, meta transport.ConnMeta, requester, connID string, raw json.RawMessage) {
	var p updateSettingsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:update-settings", "error": "invalid payload"})
		return
	}
	upd := room.SettingsUpdate{
		QuestionCount: p.QuestionCount,
		TimeLimit:     p.TimeLimit,
		Difficulty:    p.Difficulty,
		Category:      p.Category,
		MaxPlayers:    p.MaxPlayers,
		MinPlayers:    p.MinPlayers,
	}
	h.replyOnError(connID, "room:update-settings", h.rooms.UpdateSettings(ctx, meta.RoomCode, requester, upd))
}

type updatePlayerPayload struct {
	JingleID *string `json:"jingleId"`
	IsReady  *bool   `json:"isReady"`
}

func (h *Handler) handleUpdatePlayer(ctx context.Context, meta transport.ConnMeta, connID string, raw json.RawMessage) {
	var p updatePlayerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "room:update-player", "error": "invalid payload"})
		return
	}
	upd := room.PlayerUpdate{JingleID: p.JingleID, IsReady: p.IsReady}
	h.replyOnError(connID, "room:update-player", h.rooms.UpdatePlayer(ctx, meta.RoomCode, meta.PlayerID, upd))
}

type generateQuizPayload struct {
	Category      string           `json:"category"`
	QuestionCount int              `json:"questionCount"`
	Difficulty    model.Difficulty `json:"difficulty"`
}

func (h *Handler) handleGenerateQuiz(ctx context.Context, meta transport.ConnMeta, requester, connID string, raw json.RawMessage) {
	var p generateQuizPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "quiz:generate", "error": "invalid payload"})
		return
	}
	_, err := h.engine.GenerateQuiz(ctx, meta.RoomCode, requester, p.Category, p.QuestionCount, p.Difficulty)
	h.replyOnError(connID, "quiz:generate", err)
}

type submitAnswerPayload struct {
	Answer    model.Option `json:"answer"`
	Timestamp int64        `json:"timestamp"`
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, meta transport.ConnMeta, connID string, raw json.RawMessage) {
	var p submitAnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.bus.Reply(connID, "error", map[string]interface{}{"action": "answer:submit", "error": "invalid payload"})
		return
	}
	err := h.engine.SubmitAnswer(ctx, meta.RoomCode, meta.PlayerID, p.Answer, p.Timestamp)
	h.replyOnError(connID, "answer:submit", err)
}
