package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseInputPayload(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
		want    InputPayload
	}{
		{
			name: "valid",
			raw:  `{"seq":7,"left":true,"right":false,"up":false,"down":true,"attack":false}`,
			want: InputPayload{Seq: 7, Left: true, Down: true},
		},
		{
			name:    "missing field",
			raw:     `{"seq":1,"left":true,"right":false,"up":false,"down":true}`,
			wantErr: true,
		},
		{
			name:    "negative sequence",
			raw:     `{"seq":-1,"left":false,"right":false,"up":false,"down":false,"attack":false}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			raw:     `{"seq":1,"left":"yes","right":false,"up":false,"down":false,"attack":false}`,
			wantErr: true,
		},
		{
			name:    "non-integer sequence",
			raw:     `{"seq":1.5,"left":false,"right":false,"up":false,"down":false,"attack":false}`,
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     ``,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseInputPayload(json.RawMessage(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestEnqueueInputOverflowDropsOldest(t *testing.T) {
	p := &playerState{}
	for seq := int64(1); seq <= 4; seq++ {
		if dropped := p.enqueueInput(InputPayload{Seq: seq}, 3); dropped != (seq == 4) {
			t.Fatalf("seq %d: dropped = %v", seq, dropped)
		}
	}
	if len(p.inputQueue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(p.inputQueue))
	}
	// The newest intent survives; the oldest was discarded.
	if p.inputQueue[0].Seq != 2 || p.inputQueue[2].Seq != 4 {
		t.Fatalf("unexpected queue contents: %+v", p.inputQueue)
	}
}

func TestInputsDrainInFIFOOrder(t *testing.T) {
	f := newRoomFixture(t, nil)
	token := f.addAccount("user-1", "mover", time.Hour)
	_, sessionID := f.join(t, token)
	f.setPosition(sessionID, 400, 400)

	for seq := int64(1); seq <= 5; seq++ {
		f.sendInput(t, sessionID, InputPayload{Seq: seq, Right: true})
	}

	p := f.playerBySession(sessionID)
	startX := p.x
	f.step()

	if p.lastProcessedSeq != 5 {
		t.Fatalf("lastProcessedSeq = %d, want 5", p.lastProcessedSeq)
	}
	if len(p.inputQueue) != 0 {
		t.Fatalf("queue not drained: %d entries left", len(p.inputQueue))
	}
	// All five inputs were applied within the single tick.
	if p.x != startX+5*moveSpeed {
		t.Fatalf("x = %v, want %v", p.x, startX+5*moveSpeed)
	}
}

func TestLastProcessedSeqNeverDecreases(t *testing.T) {
	f := newRoomFixture(t, nil)
	token := f.addAccount("user-1", "mover", time.Hour)
	_, sessionID := f.join(t, token)

	seqs := []int64{1, 2, 5, 9, 12}
	last := int64(-1)
	for _, seq := range seqs {
		f.sendInput(t, sessionID, InputPayload{Seq: seq})
		f.step()
		p := f.playerBySession(sessionID)
		if p.lastProcessedSeq < last {
			t.Fatalf("lastProcessedSeq went backwards: %d after %d", p.lastProcessedSeq, last)
		}
		last = p.lastProcessedSeq
	}
	if last != 12 {
		t.Fatalf("final lastProcessedSeq = %d, want 12", last)
	}
}

func TestInvalidInputEvictsWithReconnectionAllowed(t *testing.T) {
	f := newRoomFixture(t, nil)
	token := f.addAccount("user-1", "mover", time.Hour)
	client, sessionID := f.join(t, token)

	payload, _ := json.Marshal(map[string]any{
		"type":  msgPlayerInput,
		"input": map[string]any{"seq": -3, "left": false, "right": false, "up": false, "down": false, "attack": false},
	})
	f.room.HandleMessage(sessionID, payload)

	closed, code, _ := client.closedWith()
	if !closed || code != CloseBadRequest {
		t.Fatalf("expected close with %d, got closed=%v code=%d", CloseBadRequest, closed, code)
	}

	// Reconnection stays possible: the player state is retained and a
	// window is pending.
	if f.playerBySession(sessionID) == nil {
		t.Fatalf("player removed despite reconnectable eviction")
	}
	f.room.mu.Lock()
	_, pending := f.room.sessions.pendingReconnect[sessionID]
	f.room.mu.Unlock()
	if !pending {
		t.Fatalf("no reconnection window opened")
	}
}

func TestInputFromUnboundSessionIsFatal(t *testing.T) {
	f := newRoomFixture(t, nil)
	// Keep one real player so the room stays alive.
	token := f.addAccount("user-1", "mover", time.Hour)
	f.join(t, token)

	f.room.HandleMessage("ghost-session", inputMsg(t, InputPayload{Seq: 1}))

	f.room.mu.Lock()
	evicted := f.room.sessions.evicted("ghost-session")
	f.room.mu.Unlock()
	if !evicted {
		t.Fatalf("unbound session was not marked for final eviction")
	}
}

func TestInputFloodCountsOverflow(t *testing.T) {
	f := newRoomFixture(t, func(cfg *RoomConfig) { cfg.MaxQueuedInputs = 8 })
	token := f.addAccount("user-1", "flooder", time.Hour)
	_, sessionID := f.join(t, token)

	for seq := int64(1); seq <= 20; seq++ {
		f.sendInput(t, sessionID, InputPayload{Seq: seq})
	}

	p := f.playerBySession(sessionID)
	if len(p.inputQueue) != 8 {
		t.Fatalf("queue length = %d, want 8", len(p.inputQueue))
	}
	if p.inputQueue[len(p.inputQueue)-1].Seq != 20 {
		t.Fatalf("newest input lost; tail seq = %d", p.inputQueue[len(p.inputQueue)-1].Seq)
	}
	if got := f.room.Metrics().QueueOverflows.Load(); got != 12 {
		t.Fatalf("overflow count = %d, want 12", got)
	}
}
