package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"punchgrounds/server/internal/auth"
	"punchgrounds/server/internal/profile"
)

// RoomConfig tunes one room. Zero values fall back to the defaults.
type RoomConfig struct {
	MaxPlayers         int
	MaxQueuedInputs    int
	ReconnectionWindow time.Duration
	InactivityTimeout  time.Duration
	SweepInterval      time.Duration
	ResultsGrace       time.Duration

	Validator auth.Validator
	Profiles  profile.Store
	Logger    *zap.SugaredLogger
	// Clock and Seed exist so tests can drive time and randomness.
	Clock func() time.Time
	Seed  int64
}

// DefaultRoomConfig returns the production tuning.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		MaxPlayers:         maxPlayersPerRoom,
		MaxQueuedInputs:    256,
		ReconnectionWindow: 20 * time.Second,
		InactivityTimeout:  time.Minute,
		SweepInterval:      2 * time.Second,
		ResultsGrace:       10 * time.Second,
	}
}

func (cfg *RoomConfig) applyDefaults() {
	defaults := DefaultRoomConfig()
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = defaults.MaxPlayers
	}
	if cfg.MaxQueuedInputs <= 0 {
		cfg.MaxQueuedInputs = defaults.MaxQueuedInputs
	}
	if cfg.ReconnectionWindow <= 0 {
		cfg.ReconnectionWindow = defaults.ReconnectionWindow
	}
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = defaults.InactivityTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.ResultsGrace <= 0 {
		cfg.ResultsGrace = defaults.ResultsGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
}

// Room is one authoritative simulation instance. All mutation of room state
// funnels through its mutex: the tick loop, connection lifecycle events, and
// the liveness sweep serialize on it, so no mid-tick step ever observes a
// torn world. Separate rooms share nothing and run fully in parallel.
type Room struct {
	ID string

	cfg     RoomConfig
	logger  *zap.SugaredLogger
	metrics *RoomMetrics
	results *ResultsStore

	mu       sync.Mutex
	players  map[string]*playerState
	enemies  map[string]*enemyState
	clients  map[string]Client
	sessions *sessionManager

	tick           uint64
	accumulator    time.Duration
	lastEnemySpawn time.Time
	lastProjection roomProjection
	rng            *rand.Rand

	hadPlayers   bool
	disposed     bool
	needsDispose bool

	// stepHook, when set, observes every processed input. Test seam for
	// exercising the per-player fault boundary.
	stepHook func(*playerState, InputPayload)

	stop      chan struct{}
	stopOnce  sync.Once
	onDispose func(*Room)
}

// NewRoom builds a room; call Run to start its loops.
func NewRoom(id string, cfg RoomConfig) (*Room, error) {
	if err := ValidateTimings(); err != nil {
		return nil, fmt.Errorf("room %s: %w", id, err)
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("room %s: token validator is required", id)
	}
	if cfg.Profiles == nil {
		return nil, fmt.Errorf("room %s: profile store is required", id)
	}
	cfg.applyDefaults()

	r := &Room{
		ID:             id,
		cfg:            cfg,
		logger:         cfg.Logger,
		metrics:        &RoomMetrics{},
		results:        NewResultsStore(),
		players:        make(map[string]*playerState),
		enemies:        make(map[string]*enemyState),
		clients:        make(map[string]Client),
		lastProjection: newRoomProjection(),
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		stop:           make(chan struct{}),
	}
	r.sessions = newSessionManager(r)
	r.logger.Infow("room created", "room", id)
	return r, nil
}

// Results exposes the room's scoreboard through a narrow read interface.
func (r *Room) Results() *ResultsStore { return r.results }

// Metrics exposes the room's counters.
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// SetOnDispose registers the teardown callback invoked once the room empties.
func (r *Room) SetOnDispose(fn func(*Room)) {
	r.mu.Lock()
	r.onDispose = fn
	r.mu.Unlock()
}

// Run drives the network-rate loop and the liveness sweep until Stop. The
// simulation advances in fixed steps: elapsed wall-clock time accumulates and
// every crossing of the step threshold runs exactly one tick, so timing stays
// identical regardless of broadcast jitter.
func (r *Room) Run() {
	ticker := time.NewTicker(patchInterval)
	defer ticker.Stop()
	sweeper := time.NewTicker(r.cfg.SweepInterval)
	defer sweeper.Stop()

	last := r.cfg.Clock()
	for {
		select {
		case <-r.stop:
			return
		case <-sweeper.C:
			r.RunSweep()
		case <-ticker.C:
			now := r.cfg.Clock()
			elapsed := now.Sub(last)
			last = now
			r.Advance(now, elapsed)
		}
	}
}

// Stop halts the loops without tearing down state.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Advance accumulates elapsed time, runs the due fixed ticks, and broadcasts
// one incremental update. Exported for deterministic tests.
func (r *Room) Advance(now time.Time, elapsed time.Duration) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}

	started := time.Now()
	r.accumulator += elapsed
	for r.accumulator >= simulationStep {
		r.accumulator -= simulationStep
		r.fixedTickLocked(now)
	}
	r.metrics.TickDurationsNs.Add(time.Since(started).Nanoseconds())

	data, targets := r.prepareBroadcastLocked(now)
	kicks, sends := r.sessions.takePending()
	r.mu.Unlock()

	r.deliver(kicks, sends)
	r.broadcast(data, targets)
	r.maybeDispose()
}

// fixedTickLocked is one simulation step: drain each connected player's input
// queue through combat then movement, then advance the enemies. A fault in
// one player's processing is contained to that player.
func (r *Room) fixedTickLocked(now time.Time) {
	r.tick++
	r.metrics.TickCount.Add(1)

	for sessionID, p := range r.players {
		// Players without a live connection are skipped; their queue is
		// preserved until the reconnection window resolves.
		if _, live := r.clients[sessionID]; !live {
			continue
		}
		if err := r.stepPlayerLocked(p, now); err != nil {
			r.logger.Errorw("player tick failed", "room", r.ID, "session", sessionID, "error", err)
			// The eviction clears the player's queue on reconnect, which
			// likely resolves the fault. Everyone else continues unaffected.
			r.sessions.queueKickLocked(sessionID, CloseInternalServerError, err.Error(), true)
		}
	}

	r.advanceEnemiesLocked(now)
}

// stepPlayerLocked drains one player's queue in FIFO order. Each dequeued
// input is acknowledged via lastProcessedSeq before it takes effect so the
// client can prune its prediction buffer, then flows through facing, combat,
// and movement in that order.
func (r *Room) stepPlayerLocked(p *playerState, now time.Time) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	for len(p.inputQueue) > 0 {
		in := p.inputQueue[0]
		p.inputQueue = p.inputQueue[1:]
		p.lastProcessedSeq = in.Seq

		if r.stepHook != nil {
			r.stepHook(p, in)
		}

		if in.Left {
			p.isFacingRight = false
		} else if in.Right {
			p.isFacingRight = true
		}

		r.resolveCombatLocked(p, in, now)
		p.x, p.y = resolveMovement(p.x, p.y, playerWidth, playerHeight, in.moveIntent())
	}
	return nil
}

// Join authenticates a fresh connection and binds it to a player, evicting
// any prior connection for the same account. Returns the session id the
// transport should route subsequent messages under.
func (r *Room) Join(ctx context.Context, token string, client Client) (string, error) {
	result, err := r.sessions.authenticate(ctx, token)
	if err != nil {
		return "", err
	}

	now := r.cfg.Clock()
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return "", &joinError{Code: CloseInternalServerError, Reason: "room closed"}
	}
	p, err := r.sessions.bindLocked(result, client, now)
	var keyframe []byte
	var sessionID string
	if err == nil {
		sessionID = p.sessionID
		keyframe = r.keyframeLocked(sessionID, now)
		r.logger.Infow("player joined", "room", r.ID, "session", sessionID, "user", p.username)
	}
	kicks, sends := r.sessions.takePending()
	r.mu.Unlock()

	r.deliver(kicks, sends)
	if err != nil {
		return "", err
	}
	if keyframe != nil {
		if sendErr := client.Send(keyframe); sendErr != nil {
			r.HandleDisconnect(sessionID, false)
			return "", fmt.Errorf("send keyframe: %w", sendErr)
		}
	}
	return sessionID, nil
}

// Rejoin resolves a pending reconnection within the window. The retained
// player keeps position and counters but starts from an empty input queue
// and a fresh sequence baseline.
func (r *Room) Rejoin(ctx context.Context, sessionID, token string, client Client) error {
	result, err := r.sessions.authenticate(ctx, token)
	if err != nil {
		return err
	}

	now := r.cfg.Clock()
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return &joinError{Code: CloseNotFound, Reason: reasonConnectionNotFound}
	}
	_, err = r.sessions.rejoinLocked(sessionID, result, client, now)
	var keyframe []byte
	if err == nil {
		keyframe = r.keyframeLocked(sessionID, now)
	}
	kicks, sends := r.sessions.takePending()
	r.mu.Unlock()

	r.deliver(kicks, sends)
	if err != nil {
		return err
	}
	if sendErr := client.Send(keyframe); sendErr != nil {
		r.HandleDisconnect(sessionID, false)
		return fmt.Errorf("send keyframe: %w", sendErr)
	}
	return nil
}

// HandleMessage dispatches one inbound message for a bound session.
func (r *Room) HandleMessage(sessionID string, data []byte) {
	now := r.cfg.Clock()

	r.mu.Lock()
	if r.disposed || r.sessions.evicted(sessionID) {
		// An in-progress eviction takes precedence over inbound activity.
		r.mu.Unlock()
		return
	}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.metrics.InputsRejected.Add(1)
		r.sessions.queueKickLocked(sessionID, CloseBadRequest, reasonInvalidPayload, true)
	} else {
		switch msg.Type {
		case msgPing:
			r.handlePingLocked(sessionID, msg.ClientTime, now)
		case msgLeaveRoom:
			// An explicit, consented leave never reconnects.
			r.sessions.queueKickLocked(sessionID, CloseSuccess, reasonIntentionalLeave, false)
		case msgPlayerInput:
			r.handlePlayerInputLocked(sessionID, msg.Input, now)
		case msgRefreshToken:
			r.sessions.refreshTokenLocked(sessionID, msg.Token, now)
		default:
			r.logger.Debugw("unknown message type", "room", r.ID, "session", sessionID, "type", msg.Type)
		}
	}
	kicks, sends := r.sessions.takePending()
	r.mu.Unlock()

	r.deliver(kicks, sends)
	r.maybeDispose()
}

func (r *Room) handlePingLocked(sessionID string, clientTime int64, now time.Time) {
	client, ok := r.clients[sessionID]
	if !ok {
		return
	}
	pong := pongMessage{Ver: ProtocolVersion, Type: "pong", ServerTime: now.UnixMilli(), ClientTime: clientTime}
	data, err := json.Marshal(pong)
	if err != nil {
		r.logger.Errorw("marshal pong", "room", r.ID, "error", err)
		return
	}
	r.sessions.queueSendLocked(sessionID, client, data)
}

func (r *Room) handlePlayerInputLocked(sessionID string, raw json.RawMessage, now time.Time) {
	p, ok := r.players[sessionID]
	if !ok {
		// A message from an unbound session cannot be recovered in place;
		// the client must re-join to get a player.
		r.sessions.queueKickLocked(sessionID, CloseNotFound, reasonConnectionNotFound, false)
		return
	}

	in, err := parseInputPayload(raw)
	if err != nil {
		r.metrics.InputsRejected.Add(1)
		r.logger.Warnw("rejecting invalid input", "room", r.ID, "session", sessionID, "error", err)
		r.sessions.queueKickLocked(sessionID, CloseBadRequest, reasonInvalidPayload, true)
		return
	}

	p.lastActivity = now
	if p.enqueueInput(in, r.cfg.MaxQueuedInputs) {
		r.metrics.QueueOverflows.Add(1)
	}
	r.metrics.InputsAccepted.Add(1)
}

// HandleDisconnect is invoked by the transport when a connection closes.
// consented marks a deliberate close initiated by the client.
func (r *Room) HandleDisconnect(sessionID string, consented bool) {
	now := r.cfg.Clock()

	r.mu.Lock()
	r.sessions.disconnectLocked(sessionID, consented, now)
	kicks, sends := r.sessions.takePending()
	r.mu.Unlock()

	r.deliver(kicks, sends)
	r.maybeDispose()
}

// RunSweep performs one liveness pass. Runs periodically from Run; exported
// for deterministic tests.
func (r *Room) RunSweep() {
	now := r.cfg.Clock()

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.sessions.sweepLocked(now)
	kicks, sends := r.sessions.takePending()
	r.mu.Unlock()

	r.deliver(kicks, sends)
	r.maybeDispose()
}

// cleanupPlayerLocked permanently removes a player and its bookkeeping. The
// scoreboard entry survives in the results store until room teardown.
func (r *Room) cleanupPlayerLocked(sessionID string) {
	p, ok := r.players[sessionID]
	if !ok {
		return
	}
	r.logger.Infow("cleaning up player", "room", r.ID, "session", sessionID, "user", p.username)

	delete(r.players, sessionID)
	delete(r.sessions.pendingReconnect, sessionID)
	delete(r.sessions.forcedDisconnects, sessionID)

	if r.hadPlayers && len(r.players) == 0 && !r.disposed {
		r.disposed = true
		r.needsDispose = true
	}
}

// keyframeLocked serializes the full wire projection for one recipient.
func (r *Room) keyframeLocked(sessionID string, now time.Time) []byte {
	msg := keyframeMessage{
		Ver:        ProtocolVersion,
		Type:       "keyframe",
		SessionID:  sessionID,
		Tick:       r.tick,
		ServerTime: now.UnixMilli(),
		Players:    make([]Player, 0, len(r.players)),
		Enemies:    make([]Enemy, 0, len(r.enemies)),
	}
	for _, p := range r.players {
		msg.Players = append(msg.Players, p.snapshot())
	}
	for _, e := range r.enemies {
		msg.Enemies = append(msg.Enemies, e.snapshot())
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Errorw("marshal keyframe", "room", r.ID, "error", err)
		return nil
	}
	return data
}

// prepareBroadcastLocked diffs the current projection against the last one
// broadcast and serializes the resulting patches. Returns nil when nothing
// changed since the previous network tick.
func (r *Room) prepareBroadcastLocked(now time.Time) ([]byte, map[string]Client) {
	next := newRoomProjection()
	for sessionID, p := range r.players {
		next.players[sessionID] = p.snapshot()
	}
	for id, e := range r.enemies {
		next.enemies[id] = e.snapshot()
	}

	patches := diffProjection(r.lastProjection, next)
	r.lastProjection = next
	if len(patches) == 0 || len(r.clients) == 0 {
		return nil, nil
	}

	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Tick:       r.tick,
		ServerTime: now.UnixMilli(),
		Patches:    patches,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Errorw("marshal state message", "room", r.ID, "error", err)
		return nil, nil
	}

	targets := make(map[string]Client, len(r.clients))
	for id, client := range r.clients {
		targets[id] = client
	}
	r.metrics.PatchesSent.Add(int64(len(patches)))
	r.metrics.BroadcastBytes.Add(int64(len(data) * len(targets)))
	return data, targets
}

// broadcast delivers one state message; a failed write is treated as an
// unexpected disconnect for that session.
func (r *Room) broadcast(data []byte, targets map[string]Client) {
	if data == nil {
		return
	}
	for sessionID, client := range targets {
		if err := client.Send(data); err != nil {
			r.logger.Warnw("state send failed", "room", r.ID, "session", sessionID, "error", err)
			r.HandleDisconnect(sessionID, false)
		}
	}
}

// deliver executes deferred sends and evictions outside the room mutex.
func (r *Room) deliver(kicks []pendingKick, sends []outbound) {
	for _, out := range sends {
		if err := out.client.Send(out.data); err != nil {
			r.HandleDisconnect(out.sessionID, false)
		}
	}
	for _, kick := range kicks {
		kick.client.CloseWithCode(kick.code, kick.reason)
	}
}

// maybeDispose finishes teardown once the last player is gone: the final
// scoreboard is read out of the results store and logged, the loops stop,
// and the manager is told to retire the room.
func (r *Room) maybeDispose() {
	r.mu.Lock()
	due := r.needsDispose
	r.needsDispose = false
	onDispose := r.onDispose
	r.mu.Unlock()
	if !due {
		return
	}

	board := r.results.Scoreboard()
	r.logger.Infow("room disposing", "room", r.ID, "results", board)
	r.Stop()
	if onDispose != nil {
		onDispose(r)
	}
}

// Disposed reports whether the room has been torn down.
func (r *Room) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// DiagnosticsSnapshot summarizes the room for the diagnostics endpoint.
func (r *Room) DiagnosticsSnapshot() map[string]any {
	r.mu.Lock()
	players := len(r.players)
	connected := len(r.clients)
	pending := len(r.sessions.pendingReconnect)
	enemies := len(r.enemies)
	tick := r.tick
	r.mu.Unlock()

	return map[string]any{
		"room":                 r.ID,
		"tick":                 tick,
		"players":              players,
		"connected":            connected,
		"pendingReconnections": pending,
		"enemies":              enemies,
		"metrics":              r.metrics.Snapshot(),
	}
}
