// audio_engine.go - Real-time audio engine loop: command drain, state sync, frame rendering

package main

import (
	"math"
	"sync/atomic"
	"time"
)

// AudioEngine owns the mixer, the track table and the transport atomics.
// The control surface holds the same engine handle but only touches it
// through Submit, Snapshot, TrackSnapshot and States - there is no
// global singleton.
//
// RenderInto is the real-time callback body. It must not allocate,
// perform I/O or log; short bounded critical sections on the track and
// effect locks are the only suspension points.
type AudioEngine struct {
	sampleRate int

	queue  *CommandQueue
	states chan AudioState

	// Transport atomics, one field each, relaxed ordering semantics.
	// Slight staleness across fields is accepted for lock-free reads.
	running atomic.Bool
	step    atomic.Uint64 // stored modulo PATTERN_STEPS
	bpm     atomic.Uint64
	cpuLoad atomic.Uint64 // math.Float64bits of the load estimate

	tracks  *TrackTable
	effects *MasterEffects
	mixer   *Mixer
	source  TrackSource

	// Render state, touched only by the callback context.
	stepPhase    float64
	frames       [NUM_TRACKS]TrackFrame
	trackSamples [NUM_TRACKS]float64
	trackSnap    [NUM_TRACKS]TrackState
}

// NewAudioEngine builds an engine for the given device sample rate. The
// mixer is constructed once here and never rebuilt while audio flows.
func NewAudioEngine(cfg *Config, source TrackSource) *AudioEngine {
	e := &AudioEngine{
		sampleRate: cfg.SampleRate,
		queue:      NewCommandQueue(COMMAND_QUEUE_SIZE),
		states:     make(chan AudioState, STATE_QUEUE_SIZE),
		tracks:     NewTrackTable(),
		effects:    NewMasterEffects(cfg),
		mixer:      NewMixer(float64(cfg.SampleRate), cfg),
		source:     source,
	}
	e.bpm.Store(uint64(cfg.BPM))
	return e
}

// Submit enqueues a command from the control context. Returns
// ErrCommandQueueFull as a recoverable error when the queue is full.
func (e *AudioEngine) Submit(cmd AudioCommand) error {
	return e.queue.Push(cmd)
}

// States is the best-effort transport snapshot channel. Updates are
// dropped when the consumer lags; Snapshot always has a fresh value.
func (e *AudioEngine) States() <-chan AudioState {
	return e.states
}

// Snapshot reads the transport atomics directly. Safe from any
// goroutine at any time.
func (e *AudioEngine) Snapshot() AudioState {
	return AudioState{
		IsPlaying:   e.running.Load(),
		CurrentStep: int(e.step.Load()),
		BPM:         int(e.bpm.Load()),
		CPULoad:     math.Float64frombits(e.cpuLoad.Load()),
	}
}

// TrackSnapshot returns a copy of the track table for the control
// surface.
func (e *AudioEngine) TrackSnapshot() []TrackState {
	var snap [NUM_TRACKS]TrackState
	e.tracks.Snapshot(&snap)
	return snap[:]
}

// SampleRate reports the engine's device sample rate.
func (e *AudioEngine) SampleRate() int {
	return e.sampleRate
}

// RenderInto fills out with interleaved stereo float32 frames. One call
// is one callback invocation: pending commands are drained first, then
// the master-chain parameters are re-applied from their snapshot, then
// frames are rendered. A parameter change is therefore visible starting
// with the very next frame, never retroactively.
func (e *AudioEngine) RenderInto(out []float32) {
	start := time.Now()

	e.drainCommands()

	fx := e.effects.Snapshot()
	e.mixer.SetMasterVolume(fx.MasterVolume)
	e.mixer.SetEQ(fx.EqLow, fx.EqMid, fx.EqHigh)
	e.mixer.SetLimiterThreshold(fx.LimiterThreshold)
	e.mixer.SetClipAmount(fx.ClipAmount)

	// Tempo changes take effect here, on the next threshold computation.
	samplesPerStep := float64(e.sampleRate) * 60.0 / (float64(e.bpm.Load()) * STEPS_PER_BEAT)

	anySoloed := e.tracks.Snapshot(&e.trackSnap)
	for i := range e.frames {
		e.frames[i].Volume = e.trackSnap[i].Volume
		e.frames[i].Pan = e.trackSnap[i].Pan
		e.frames[i].Muted = e.trackSnap[i].Muted
		e.frames[i].Soloed = e.trackSnap[i].Soloed
	}

	for i := 0; i+1 < len(out); i += 2 {
		var left, right float64

		if e.running.Load() {
			e.source.NextFrame(e.trackSamples[:])
			for t := range e.frames {
				e.frames[t].Sample = e.trackSamples[t]
			}
			left, right = e.mixer.MixChannels(e.frames[:], anySoloed)

			// Step clock: one increment per frame, persisted across
			// callbacks. Stopped playback advances nothing.
			e.stepPhase++
			if e.stepPhase >= samplesPerStep {
				e.stepPhase = 0
				e.step.Store((e.step.Load() + 1) % PATTERN_STEPS)
				e.publishState()
			}
		}

		// Silence still runs through the master chain while stopped so
		// filter and limiter tails decay instead of being reset.
		l, r := e.mixer.ProcessMaster(left, right)
		out[i] = l
		out[i+1] = r
	}
	if len(out)%2 == 1 {
		out[len(out)-1] = 0
	}

	if frames := len(out) / 2; frames > 0 {
		bufferDur := float64(frames) / float64(e.sampleRate)
		e.cpuLoad.Store(math.Float64bits(time.Since(start).Seconds() / bufferDur))
	}
}

// drainCommands applies every pending command in queue order, once per
// callback invocation, before any frame of that invocation is rendered.
func (e *AudioEngine) drainCommands() {
	for {
		cmd, ok := e.queue.Poll()
		if !ok {
			return
		}
		e.applyCommand(cmd)
	}
}

// applyCommand interprets one command. Malformed content (out-of-range
// track, non-positive bpm, unknown kind) is dropped silently - the
// real-time path cannot afford to fail, validation belongs upstream.
func (e *AudioEngine) applyCommand(cmd AudioCommand) {
	switch cmd.Kind {
	case CMD_PLAY:
		e.running.Store(true)
	case CMD_STOP:
		e.running.Store(false)
	case CMD_SET_VOLUME:
		e.effects.SetMasterVolume(cmd.Value)
	case CMD_SET_TRACK_VOLUME:
		e.tracks.SetVolume(cmd.Track, cmd.Value)
	case CMD_SET_TRACK_PAN:
		e.tracks.SetPan(cmd.Track, cmd.Value)
	case CMD_TOGGLE_MUTE:
		e.tracks.ToggleMute(cmd.Track)
	case CMD_TOGGLE_SOLO:
		e.tracks.ToggleSolo(cmd.Track)
	case CMD_SET_BPM:
		if cmd.Value >= 1 {
			e.bpm.Store(uint64(cmd.Value))
		}
	case CMD_SET_EQ_LOW, CMD_SET_EQ_MID, CMD_SET_EQ_HIGH:
		e.effects.SetEQBand(cmd.Kind, cmd.Value)
	case CMD_SET_LIMITER:
		e.effects.SetLimiterThreshold(cmd.Value)
	case CMD_SET_CLIP:
		e.effects.SetClipAmount(cmd.Value)
	}
}

// publishState pushes a snapshot without blocking; a full channel drops
// the update. The control surface can always poll Snapshot instead.
func (e *AudioEngine) publishState() {
	select {
	case e.states <- e.Snapshot():
	default:
	}
}
