package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"punchgrounds/server/internal/profile"
)

// Client is the send half of a connection bound to a session. The websocket
// transport implements it; tests substitute fakes.
type Client interface {
	Send(data []byte) error
	CloseWithCode(code int, reason string)
}

// joinError carries the close code a rejected connection attempt should see.
type joinError struct {
	Code   int
	Reason string
}

func (e *joinError) Error() string {
	return fmt.Sprintf("join rejected (%d): %s", e.Code, e.Reason)
}

// AsJoinError extracts the close code and reason from a Join/Rejoin failure.
func AsJoinError(err error) (int, string, bool) {
	var je *joinError
	if errors.As(err, &je) {
		return je.Code, je.Reason, true
	}
	return 0, "", false
}

type authResult struct {
	profile   profile.Profile
	expiresAt time.Time
}

type pendingKick struct {
	client Client
	code   int
	reason string
}

type outbound struct {
	client    Client
	sessionID string
	data      []byte
}

// sessionManager owns the connection lifecycle for one room: token checks,
// single-session-per-account enforcement, the reconnection window, and the
// liveness sweep. All *Locked methods run under the room mutex.
type sessionManager struct {
	room *Room

	// pendingReconnect maps a session id to the wall-clock deadline by which
	// the same session must rejoin. Resolved by comparison during the sweep,
	// never by per-entry timers.
	pendingReconnect map[string]time.Time
	// forcedDisconnects marks sessions whose next disconnect is final.
	forcedDisconnects map[string]struct{}

	kicks []pendingKick
	sends []outbound
}

func newSessionManager(room *Room) *sessionManager {
	return &sessionManager{
		room:              room,
		pendingReconnect:  make(map[string]time.Time),
		forcedDisconnects: make(map[string]struct{}),
	}
}

// authenticate validates the bearer token and resolves the account profile.
// Runs off the tick's critical path, before any room state is touched.
func (s *sessionManager) authenticate(ctx context.Context, token string) (authResult, error) {
	claims, err := s.room.cfg.Validator.Validate(token)
	if err != nil {
		return authResult{}, &joinError{Code: CloseUnauthorized, Reason: reasonInvalidToken}
	}
	prof, err := s.room.cfg.Profiles.FindByUserID(ctx, claims.UserID)
	if errors.Is(err, profile.ErrNotFound) {
		return authResult{}, &joinError{Code: CloseNotFound, Reason: reasonProfileNotFound}
	}
	if err != nil {
		s.room.logger.Errorw("profile lookup failed", "room", s.room.ID, "error", err)
		return authResult{}, &joinError{Code: CloseInternalServerError, Reason: err.Error()}
	}
	return authResult{profile: prof, expiresAt: claims.ExpiresAt}, nil
}

// bindLocked attaches an authenticated connection to a player, enforcing at
// most one live session per account. When the account is already present the
// prior connection is evicted without reconnection and the existing player
// state transfers to the new session id, keeping position and counters.
func (s *sessionManager) bindLocked(result authResult, client Client, now time.Time) (*playerState, error) {
	r := s.room

	var existing *playerState
	for _, p := range r.players {
		if p.userID == result.profile.UserID {
			existing = p
			break
		}
	}

	if existing == nil && len(r.players) >= r.cfg.MaxPlayers {
		return nil, &joinError{Code: CloseForbidden, Reason: reasonRoomFull}
	}

	sessionID := uuid.NewString()

	if existing != nil {
		oldSession := existing.sessionID
		r.logger.Infow("replacing existing connection",
			"room", r.ID, "oldSession", oldSession, "newSession", sessionID, "user", result.profile.Username)

		if _, live := r.clients[oldSession]; live {
			s.queueKickLocked(oldSession, CloseForbidden, reasonNewConnection, false)
		}
		delete(r.players, oldSession)
		delete(s.pendingReconnect, oldSession)

		existing.sessionID = sessionID
		existing.inputQueue = nil
		existing.lastProcessedSeq = 0
	} else {
		existing = &playerState{
			sessionID:     sessionID,
			isFacingRight: true,
			x:             playerWidth/2 + r.rng.Float64()*(worldWidth-playerWidth),
			y:             playerHeight/2 + r.rng.Float64()*(worldHeight-playerHeight),
		}
	}

	existing.userID = result.profile.UserID
	existing.username = result.profile.Username
	existing.tokenExpiresAt = result.expiresAt
	existing.lastActivity = now

	r.players[sessionID] = existing
	r.clients[sessionID] = client
	r.hadPlayers = true

	r.results.Ensure(existing.userID, existing.username, existing.attackCount, existing.killCount)

	return existing, nil
}

// rejoinLocked resolves a pending reconnection for the given session. Queued
// but unprocessed inputs are discarded so stale predictions never replay
// against a world that moved on.
func (s *sessionManager) rejoinLocked(sessionID string, result authResult, client Client, now time.Time) (*playerState, error) {
	r := s.room

	p, ok := r.players[sessionID]
	deadline, pending := s.pendingReconnect[sessionID]
	if !ok || !pending || now.After(deadline) {
		return nil, &joinError{Code: CloseNotFound, Reason: reasonConnectionNotFound}
	}
	if p.userID != result.profile.UserID {
		return nil, &joinError{Code: CloseForbidden, Reason: reasonUserIDChanged}
	}

	delete(s.pendingReconnect, sessionID)
	r.clients[sessionID] = client

	p.inputQueue = nil
	p.lastProcessedSeq = 0
	p.lastActivity = now
	p.tokenExpiresAt = result.expiresAt

	r.metrics.Reconnects.Add(1)
	r.logger.Infow("client reconnected", "room", r.ID, "session", sessionID, "user", p.username)
	return p, nil
}

// refreshTokenLocked re-validates an in-session token. Any failure is final:
// the client must re-authenticate out-of-band, and a token naming a different
// account is treated as a security condition.
func (s *sessionManager) refreshTokenLocked(sessionID, token string, now time.Time) {
	r := s.room

	claims, err := r.cfg.Validator.Validate(token)
	if err != nil {
		s.queueKickLocked(sessionID, CloseUnauthorized, reasonInvalidToken, false)
		return
	}
	p, ok := r.players[sessionID]
	if !ok {
		s.queueKickLocked(sessionID, CloseNotFound, reasonConnectionNotFound, false)
		return
	}
	if p.userID != claims.UserID {
		s.queueKickLocked(sessionID, CloseForbidden, reasonUserIDChanged, false)
		return
	}

	p.tokenExpiresAt = claims.ExpiresAt
	p.lastActivity = now
	r.logger.Infow("token refreshed", "room", r.ID, "session", sessionID, "user", p.username)
}

// disconnectLocked handles a connection going away. A consented or forced
// close removes the player permanently; an unexpected drop opens the bounded
// reconnection window during which the player state is retained.
func (s *sessionManager) disconnectLocked(sessionID string, consented bool, now time.Time) {
	r := s.room

	_, wasLive := r.clients[sessionID]
	delete(r.clients, sessionID)

	_, forced := s.forcedDisconnects[sessionID]
	delete(s.forcedDisconnects, sessionID)

	p, ok := r.players[sessionID]
	if !ok {
		return
	}

	if consented || forced {
		r.cleanupPlayerLocked(sessionID)
		return
	}

	if !wasLive {
		// Already awaiting reconnection; don't restart the window.
		if _, pending := s.pendingReconnect[sessionID]; pending {
			return
		}
	}

	s.pendingReconnect[sessionID] = now.Add(r.cfg.ReconnectionWindow)
	r.logger.Infow("awaiting reconnection",
		"room", r.ID, "session", sessionID, "user", p.username, "window", r.cfg.ReconnectionWindow)
}

// sweepLocked is the periodic liveness pass: it finalizes expired
// reconnection windows, removes orphaned players whose removal never went
// through the leave path, and evicts expired or inactive sessions.
func (s *sessionManager) sweepLocked(now time.Time) {
	r := s.room

	for sessionID, p := range r.players {
		if _, live := r.clients[sessionID]; !live {
			if deadline, pending := s.pendingReconnect[sessionID]; pending {
				if now.After(deadline) {
					r.logger.Infow("reconnection window expired", "room", r.ID, "session", sessionID, "user", p.username)
					r.cleanupPlayerLocked(sessionID)
				}
				continue
			}
			r.cleanupPlayerLocked(sessionID)
			continue
		}

		if !now.Before(p.tokenExpiresAt) {
			s.queueKickLocked(sessionID, CloseUnauthorized, reasonTokenExpired, false)
			continue
		}
		if now.Sub(p.lastActivity) > r.cfg.InactivityTimeout {
			s.queueKickLocked(sessionID, CloseTimeout, reasonInactivity, true)
		}
	}
}

// queueKickLocked records an eviction to be delivered after the room mutex is
// released. Eviction is always "close with code X, allow-reconnect Y"; state
// removal happens on the disconnect callback or when the window lapses.
func (s *sessionManager) queueKickLocked(sessionID string, code int, reason string, allowReconnect bool) {
	r := s.room

	if !allowReconnect {
		s.forcedDisconnects[sessionID] = struct{}{}
	}
	r.metrics.Evictions.Add(1)
	r.logger.Infow("disconnecting client",
		"room", r.ID, "session", sessionID, "code", code, "reason", reason, "allowReconnect", allowReconnect)

	if client, ok := r.clients[sessionID]; ok {
		s.kicks = append(s.kicks, pendingKick{client: client, code: code, reason: reason})
	}
}

func (s *sessionManager) queueSendLocked(sessionID string, client Client, data []byte) {
	s.sends = append(s.sends, outbound{client: client, sessionID: sessionID, data: data})
}

// takePending drains the deferred kicks and sends. Called under the room
// mutex; the returned work must be executed after it is released.
func (s *sessionManager) takePending() ([]pendingKick, []outbound) {
	kicks, sends := s.kicks, s.sends
	s.kicks, s.sends = nil, nil
	return kicks, sends
}

// evicted reports whether the session has a final eviction in flight.
// Inbound activity from such a session is ignored.
func (s *sessionManager) evicted(sessionID string) bool {
	_, ok := s.forcedDisconnects[sessionID]
	return ok
}
