// audio_commands.go - Command and transport types shared between the control surface and the audio thread

package main

import "errors"

const (
	NUM_TRACKS    = 7  // Fixed mixer roster
	PATTERN_STEPS = 32 // Step counter wraps at one pattern cycle

	COMMAND_QUEUE_SIZE = 1024 // Control -> audio command slots
	STATE_QUEUE_SIZE   = 64   // Audio -> control snapshot slots

	STEPS_PER_BEAT = 4 // Sixteenth-note subdivision
)

// Command kinds. Unknown kinds are ignored by the audio thread so that
// newer control surfaces can talk to older engines.
const (
	CMD_NONE = iota
	CMD_PLAY
	CMD_STOP
	CMD_SET_VOLUME
	CMD_SET_TRACK_VOLUME
	CMD_SET_TRACK_PAN
	CMD_TOGGLE_MUTE
	CMD_TOGGLE_SOLO
	CMD_SET_BPM
	CMD_SET_EQ_LOW
	CMD_SET_EQ_MID
	CMD_SET_EQ_HIGH
	CMD_SET_LIMITER
	CMD_SET_CLIP
)

// AudioCommand is a discrete parameter-change or transport message.
// It is immutable once constructed and owned by the queue until consumed.
type AudioCommand struct {
	Kind  int
	Track int
	Value float64
	Data  []byte // Reserved for future binary payloads (sample uploads etc)
}

// AudioState is the transport snapshot published by the audio thread.
// Field names match the wire format of the control protocol.
type AudioState struct {
	IsPlaying   bool    `json:"is_playing"`
	CurrentStep int     `json:"current_step"`
	BPM         int     `json:"bpm"`
	CPULoad     float64 `json:"cpu_load"`
}

// ErrCommandQueueFull is returned to a producer when the command queue
// has no free slots. The audio side never observes this condition.
var ErrCommandQueueFull = errors.New("audio: command queue full")

// CommandQueue is a bounded multi-producer/single-consumer conduit from
// the control surface to the audio thread. Producers fail fast when the
// queue is full; the consumer drains with a non-blocking poll.
type CommandQueue struct {
	ch chan AudioCommand
}

func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{ch: make(chan AudioCommand, capacity)}
}

// Push enqueues a command. Returns ErrCommandQueueFull instead of
// blocking - submission runs off the real-time thread and the caller
// decides whether to retry.
func (q *CommandQueue) Push(cmd AudioCommand) error {
	select {
	case q.ch <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Poll removes and returns the oldest pending command without blocking.
// An empty queue is simply "no pending commands", never an error.
func (q *CommandQueue) Poll() (AudioCommand, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return AudioCommand{}, false
	}
}

// Len reports the number of pending commands.
func (q *CommandQueue) Len() int {
	return len(q.ch)
}
