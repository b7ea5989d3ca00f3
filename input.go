package server

import (
	"encoding/json"
	"errors"
	"fmt"
)

// InputPayload is one validated client intent: a per-connection sequence
// number, four independent directional bits, and an attack bit.
type InputPayload struct {
	Seq    int64
	Left   bool
	Right  bool
	Up     bool
	Down   bool
	Attack bool
}

func (in InputPayload) moveIntent() moveIntent {
	return moveIntent{Left: in.Left, Right: in.Right, Up: in.Up, Down: in.Down}
}

var errMissingInputField = errors.New("missing input field")

// rawInputPayload mirrors InputPayload with pointer fields so that absent or
// mistyped fields fail validation instead of defaulting silently.
type rawInputPayload struct {
	Seq    *int64 `json:"seq"`
	Left   *bool  `json:"left"`
	Right  *bool  `json:"right"`
	Up     *bool  `json:"up"`
	Down   *bool  `json:"down"`
	Attack *bool  `json:"attack"`
}

// parseInputPayload validates the shape and range of a raw playerInput
// payload. A failure here is a protocol violation, not a game event.
func parseInputPayload(raw json.RawMessage) (InputPayload, error) {
	if len(raw) == 0 {
		return InputPayload{}, fmt.Errorf("validate input: empty payload")
	}
	var in rawInputPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return InputPayload{}, fmt.Errorf("validate input: %w", err)
	}
	if in.Seq == nil || in.Left == nil || in.Right == nil || in.Up == nil || in.Down == nil || in.Attack == nil {
		return InputPayload{}, fmt.Errorf("validate input: %w", errMissingInputField)
	}
	if *in.Seq < 0 {
		return InputPayload{}, fmt.Errorf("validate input: negative seq %d", *in.Seq)
	}
	return InputPayload{
		Seq:    *in.Seq,
		Left:   *in.Left,
		Right:  *in.Right,
		Up:     *in.Up,
		Down:   *in.Down,
		Attack: *in.Attack,
	}, nil
}

// enqueueInput appends a validated payload to the player's pending queue.
// The queue is bounded; on overflow the oldest entry is dropped so the most
// recent intent always survives a flooding client. Reports whether an entry
// was dropped.
func (p *playerState) enqueueInput(in InputPayload, maxQueued int) bool {
	dropped := false
	if maxQueued > 0 && len(p.inputQueue) >= maxQueued {
		p.inputQueue = p.inputQueue[1:]
		dropped = true
	}
	p.inputQueue = append(p.inputQueue, in)
	return dropped
}
