// Package room implements RoomManager (spec §4.8): lobby-shape
// operations composed from RoomStore, AvatarPool, Validator, and
// EventBus. Grounded on the teacher's internal/game.Room (AddPlayer,
// RemovePlayer, case-insensitive duplicate-name check, host-vs-player
// capacity accounting) — generalized from an in-memory mutex-guarded map
// to operations expressed as RoomStore.Update mutators, since the
// teacher's Room lives only in process memory while ours persists
// through an external cache.
package room

import (
	"context"
	"fmt"
	"time"

	"treacherest/internal/avatar"
	"treacherest/internal/cache"
	"treacherest/internal/model"
	"treacherest/internal/roomcode"
	"treacherest/internal/transport"
	"treacherest/internal/validate"
)

// Manager implements the lobby-shape operations of spec §4.8.
type Manager struct {
	store  cache.Store
	issuer *roomcode.Issuer
	bus    transport.EventBus
}

// NewManager wires a Manager from its three collaborators: the RoomStore
// it shares with GameEngine, the code issuer, and the EventBus.
func NewManager(store cache.Store, issuer *roomcode.Issuer, bus transport.EventBus) *Manager {
	return &Manager{store: store, issuer: issuer, bus: bus}
}

// JoinInput is the player-supplied portion of a join/rejoin request.
type JoinInput struct {
	Name     string
	Avatar   string
	JingleID string
}

// CreateRoom issues a fresh code, persists a lobby-phase room, and
// subscribes the host connection to its broadcast channel.
func (m *Manager) CreateRoom(ctx context.Context, hostConnID, hostName string) (*model.Room, error) {
	code, err := m.issuer.Issue(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeExhausted, err)
	}

	// HostID tracks whichever connection currently acts as host, the same
	// way RebindHost reassigns it on takeover — so the creating connection
	// is its own host identity rather than a separate issued id.
	r := model.NewRoomWithHostName(code, hostConnID, hostName)
	if err := m.store.Create(ctx, code, r); err != nil {
		return nil, fmt.Errorf("room: create %s: %w", code, err)
	}

	m.bus.Subscribe(code, hostConnID, transport.ConnMeta{RoomCode: code, Role: transport.RoleTV})
	m.bus.Reply(hostConnID, "room:created", map[string]interface{}{"roomCode": code, "room": r})
	return r, nil
}

// JoinRoom validates and appends a new player to an existing lobby.
func (m *Manager) JoinRoom(ctx context.Context, code string, in JoinInput, connID string) (*model.Player, error) {
	if err := validate.Join(validate.JoinRequest{RoomCode: code, Name: in.Name, Avatar: in.Avatar}); err != nil {
		return nil, err
	}

	var joined *model.Player
	var playerCount int
	_, err := m.store.Update(ctx, code, func(r *model.Room) error {
		if r.Phase != model.PhaseLobby {
			return ErrGameInProgress
		}
		if len(r.Players) >= r.Settings.MaxPlayers {
			return ErrRoomFull
		}
		if r.GetPlayerByName(in.Name) != nil {
			return ErrNameTaken
		}

		a := in.Avatar
		if a == "" {
			taken := make([]string, 0, len(r.Players))
			for _, p := range r.Players {
				taken = append(taken, p.Avatar)
			}
			a = avatar.AssignExcluding(taken)
		}

		// ID tracks the joining connection directly, the same way
		// RejoinRoom/RebindHost rebind ID to whichever connID currently
		// represents this player/host, so OnDisconnect and LeaveRoom can
		// key off connID without a separate lookup table.
		joined = &model.Player{
			ID:          connID,
			Name:        in.Name,
			Avatar:      a,
			JingleID:    in.JingleID,
			IsConnected: true,
			JoinedAt:    time.Now(),
		}
		r.Players = append(r.Players, joined)
		playerCount = len(r.Players)
		return nil
	})
	if err != nil {
		return nil, translateNotFound(err)
	}

	m.bus.Subscribe(code, connID, transport.ConnMeta{RoomCode: code, Role: transport.RolePlayer, PlayerID: joined.ID})
	m.bus.Broadcast(code, "room:player-joined", transport.Same(map[string]interface{}{
		"player":      joined,
		"playerCount": playerCount,
	}))
	m.bus.Reply(connID, "room:joined", map[string]interface{}{"player": joined})
	return joined, nil
}

// RejoinRoom rebinds an existing player's connection id by matching
// name case-insensitively. If no existing player matches and the room
// is still in lobby, it falls back to a regular join (spec §4.8).
func (m *Manager) RejoinRoom(ctx context.Context, code string, in JoinInput, connID string) (*model.Player, bool, error) {
	var rejoined *model.Player
	var oldPlayerID string
	var fallbackToJoin bool

	_, err := m.store.Update(ctx, code, func(r *model.Room) error {
		existing := r.GetPlayerByName(in.Name)
		if existing == nil {
			if r.Phase == model.PhaseLobby {
				fallbackToJoin = true
				return nil
			}
			return ErrGameInProgress
		}
		oldPlayerID = existing.ID
		existing.ID = connID
		existing.IsConnected = true
		if in.Avatar != "" {
			existing.Avatar = in.Avatar
		}
		if in.JingleID != "" {
			existing.JingleID = in.JingleID
		}
		rejoined = existing
		return nil
	})
	if err != nil {
		return nil, false, translateNotFound(err)
	}
	if fallbackToJoin {
		p, joinErr := m.JoinRoom(ctx, code, in, connID)
		return p, true, joinErr
	}

	m.bus.Subscribe(code, connID, transport.ConnMeta{RoomCode: code, Role: transport.RolePlayer, PlayerID: rejoined.ID})
	m.bus.Broadcast(code, "room:player-rejoined", transport.Same(map[string]interface{}{
		"oldPlayerId": oldPlayerID,
		"player":      rejoined,
	}))
	m.bus.Reply(connID, "room:rejoined", map[string]interface{}{"player": rejoined})
	return rejoined, false, nil
}

// LeaveRoom removes a player entirely and notifies the room.
func (m *Manager) LeaveRoom(ctx context.Context, code, playerID string) error {
	var playerCount int
	_, err := m.store.Update(ctx, code, func(r *model.Room) error {
		for i, p := range r.Players {
			if p.ID == playerID {
				r.Players = append(r.Players[:i], r.Players[i+1:]...)
				break
			}
		}
		playerCount = len(r.Players)
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}
	m.bus.Unsubscribe(code, playerID)
	m.bus.Broadcast(code, "room:player-left", transport.Same(map[string]interface{}{
		"playerId":    playerID,
		"playerCount": playerCount,
	}))
	return nil
}

// KickPlayer removes targetID, provided requesterID is the room's host.
func (m *Manager) KickPlayer(ctx context.Context, code, requesterID, targetID string) error {
	_, err := m.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		for i, p := range r.Players {
			if p.ID == targetID {
				r.Players = append(r.Players[:i], r.Players[i+1:]...)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}
	m.bus.Emit(targetID, "room:kicked", nil)
	return m.LeaveRoom(ctx, code, targetID)
}

// SettingsUpdate is a partial update to RoomSettings; nil fields are
// left unchanged by UpdateSettings's shallow merge.
type SettingsUpdate struct {
	QuestionCount *int
	TimeLimit     *int
	Difficulty    *model.Difficulty
	Category      *string
	MaxPlayers    *int
	MinPlayers    *int
}

// UpdateSettings shallow-merges upd into the room's settings, provided
// requesterID is the host, then validates and broadcasts the result.
func (m *Manager) UpdateSettings(ctx context.Context, code, requesterID string, upd SettingsUpdate) error {
	var merged model.RoomSettings
	_, err := m.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		merged = r.Settings
		if upd.QuestionCount != nil {
			merged.QuestionCount = *upd.QuestionCount
		}
		if upd.TimeLimit != nil {
			merged.TimeLimit = *upd.TimeLimit
		}
		if upd.Difficulty != nil {
			merged.Difficulty = *upd.Difficulty
		}
		if upd.Category != nil {
			merged.Category = *upd.Category
		}
		if upd.MaxPlayers != nil {
			merged.MaxPlayers = *upd.MaxPlayers
		}
		if upd.MinPlayers != nil {
			merged.MinPlayers = *upd.MinPlayers
		}
		if err := validate.Settings(merged); err != nil {
			return err
		}
		r.Settings = merged
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}
	m.bus.Broadcast(code, "room:settings-updated", transport.Same(map[string]interface{}{"settings": merged}))
	return nil
}

// PlayerUpdate is a partial update to a player's jingle/ready state.
type PlayerUpdate struct {
	JingleID *string
	IsReady  *bool
}

// UpdatePlayer applies a partial update to one player, then broadcasts
// the change. If every connected player is ready and the room has
// reached its minimum player count, it also broadcasts
// room:all-players-ready (spec §4.8).
func (m *Manager) UpdatePlayer(ctx context.Context, code, playerID string, upd PlayerUpdate) error {
	var updated *model.Player
	var allReady bool

	_, err := m.store.Update(ctx, code, func(r *model.Room) error {
		p := r.GetPlayer(playerID)
		if p == nil {
			return fmt.Errorf("room: player %s not found", playerID)
		}
		if upd.JingleID != nil {
			p.JingleID = *upd.JingleID
		}
		if upd.IsReady != nil {
			p.IsReady = *upd.IsReady
		}
		updated = p

		if len(r.Players) >= r.Settings.MinPlayers {
			ready := true
			for _, pl := range r.Players {
				if pl.IsConnected && !pl.IsReady {
					ready = false
					break
				}
			}
			allReady = ready
		}
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}

	m.bus.Broadcast(code, "room:player-updated", transport.Same(map[string]interface{}{"player": updated}))
	if allReady {
		m.bus.Broadcast(code, "room:all-players-ready", transport.Same(map[string]interface{}{}))
	}
	return nil
}

// RebindHost reconnects a tv-type connection as the room's host. Per
// spec §9's host-takeover decision, a TV disconnect never aborts the
// game: the room is left flagged hostConnected=false, and any
// subsequent tv join silently takes over as host rather than being
// rejected or requiring the original hostId to match.
//
// TODO: no bounded reconnection window is enforced here, so a room can
// sit with hostConnected=false indefinitely waiting for a takeover; the
// source specifies no concrete window length to enforce one against.
func (m *Manager) RebindHost(ctx context.Context, code, connID string) (*model.Room, error) {
	room, err := m.store.Update(ctx, code, func(r *model.Room) error {
		r.HostID = connID
		r.HostConnected = true
		return nil
	})
	if err != nil {
		return nil, translateNotFound(err)
	}

	m.bus.Subscribe(code, connID, transport.ConnMeta{RoomCode: code, Role: transport.RoleTV})
	m.bus.Reply(connID, "room:joined", map[string]interface{}{"room": room})
	return room, nil
}

// OnDisconnect handles a dropped connection: a TV disconnect is
// announced and flagged; a player disconnect flips isConnected without
// removing them, preserving their score for a later rejoin.
func (m *Manager) OnDisconnect(ctx context.Context, code, connID string, role transport.Role) error {
	if role == transport.RoleTV {
		_, err := m.store.Update(ctx, code, func(r *model.Room) error {
			r.HostConnected = false
			return nil
		})
		if err != nil {
			return translateNotFound(err)
		}
		m.bus.Broadcast(code, "room:tv-disconnected", transport.Same(map[string]interface{}{}))
		return nil
	}

	_, err := m.store.Update(ctx, code, func(r *model.Room) error {
		p := r.GetPlayer(connID)
		if p == nil {
			return nil
		}
		p.IsConnected = false
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}
	m.bus.Broadcast(code, "room:player-disconnected", transport.Same(map[string]interface{}{"playerId": connID}))
	return nil
}

func translateNotFound(err error) error {
	if err == cache.ErrNotFound {
		return ErrRoomNotFound
	}
	return err
}
