// audio_engine_test.go - Tests for the audio engine loop and command application

package main

import (
	"math"
	"testing"
)

func newTestEngine(bpm int) *AudioEngine {
	cfg := DefaultConfig()
	cfg.BPM = bpm
	return NewAudioEngine(cfg, NewToneBank(cfg.SampleRate))
}

func renderFrames(e *AudioEngine, frames int) []float32 {
	buf := make([]float32, frames*2)
	e.RenderInto(buf)
	return buf
}

func submit(t *testing.T, e *AudioEngine, cmd AudioCommand) {
	t.Helper()
	if err := e.Submit(cmd); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
}

func TestStepTiming(t *testing.T) {
	// 48000 * 60 / (120 * 4) = 6000 samples per sixteenth step.
	e := newTestEngine(120)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})

	renderFrames(e, 6000)
	if got := e.Snapshot().CurrentStep; got != 1 {
		t.Fatalf("after 6000 frames step = %d, want 1", got)
	}

	// Step clock persists across callback invocations.
	renderFrames(e, 3000)
	renderFrames(e, 3000)
	if got := e.Snapshot().CurrentStep; got != 2 {
		t.Fatalf("after split buffers step = %d, want 2", got)
	}
}

func TestStepWrapsAtPatternEnd(t *testing.T) {
	e := newTestEngine(120)
	e.step.Store(PATTERN_STEPS - 1)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})

	renderFrames(e, 6000)
	if got := e.Snapshot().CurrentStep; got != 0 {
		t.Fatalf("step = %d, want wrap to 0", got)
	}
}

func TestStoppedAdvancesNothing(t *testing.T) {
	e := newTestEngine(120)

	renderFrames(e, 20000)
	if got := e.Snapshot().CurrentStep; got != 0 {
		t.Fatalf("stopped engine advanced step to %d", got)
	}
}

func TestTempoChangeTakesEffectNextCallback(t *testing.T) {
	e := newTestEngine(120)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})
	submit(t, e, AudioCommand{Kind: CMD_SET_BPM, Value: 240})

	// At 240 bpm a step is 3000 samples.
	renderFrames(e, 3000)
	if got := e.Snapshot().CurrentStep; got != 1 {
		t.Fatalf("step = %d, want 1 at doubled tempo", got)
	}
	if got := e.Snapshot().BPM; got != 240 {
		t.Fatalf("bpm = %d, want 240", got)
	}
}

func TestOutOfRangeTrackDroppedSilently(t *testing.T) {
	e := newTestEngine(128)

	if err := e.Submit(AudioCommand{Kind: CMD_SET_TRACK_VOLUME, Track: 99, Value: 0.5}); err != nil {
		t.Fatalf("submission itself must not fail: %v", err)
	}
	renderFrames(e, 64)

	for i, tr := range e.TrackSnapshot() {
		if tr.Volume != DEFAULT_TRACK_VOLUME {
			t.Fatalf("track %d volume = %g, want untouched %g", i, tr.Volume, DEFAULT_TRACK_VOLUME)
		}
	}
}

func TestUnknownCommandKindIgnored(t *testing.T) {
	e := newTestEngine(128)
	submit(t, e, AudioCommand{Kind: 999, Value: 42})

	renderFrames(e, 64)
	if got := e.Snapshot(); got.IsPlaying || got.BPM != 128 {
		t.Fatalf("unknown command mutated state: %+v", got)
	}
}

func TestTrackCommandApplication(t *testing.T) {
	e := newTestEngine(128)

	submit(t, e, AudioCommand{Kind: CMD_SET_TRACK_VOLUME, Track: 2, Value: 1.5})
	submit(t, e, AudioCommand{Kind: CMD_SET_TRACK_PAN, Track: 3, Value: -2.0})
	submit(t, e, AudioCommand{Kind: CMD_TOGGLE_MUTE, Track: 1})
	submit(t, e, AudioCommand{Kind: CMD_TOGGLE_SOLO, Track: 4})
	renderFrames(e, 64)

	tracks := e.TrackSnapshot()
	if tracks[2].Volume != 1.0 {
		t.Fatalf("track 2 volume = %g, want clamp to 1.0", tracks[2].Volume)
	}
	if tracks[3].Pan != -1.0 {
		t.Fatalf("track 3 pan = %g, want clamp to -1.0", tracks[3].Pan)
	}
	if !tracks[1].Muted || !tracks[4].Soloed {
		t.Fatalf("toggles not applied: %+v", tracks)
	}

	submit(t, e, AudioCommand{Kind: CMD_TOGGLE_MUTE, Track: 1})
	renderFrames(e, 64)
	if e.TrackSnapshot()[1].Muted {
		t.Fatalf("second toggle did not unmute")
	}
}

func TestMasterVolumeClamped(t *testing.T) {
	e := newTestEngine(128)
	submit(t, e, AudioCommand{Kind: CMD_SET_VOLUME, Value: 1.5})

	renderFrames(e, 64)
	if e.mixer.masterVolume != 1.0 {
		t.Fatalf("master volume = %g, want clamp to 1.0", e.mixer.masterVolume)
	}
}

func TestNonPositiveBpmDropped(t *testing.T) {
	e := newTestEngine(128)
	submit(t, e, AudioCommand{Kind: CMD_SET_BPM, Value: 0})

	renderFrames(e, 64)
	if got := e.Snapshot().BPM; got != 128 {
		t.Fatalf("bpm = %d, want unchanged 128", got)
	}
}

func TestEqCommandIdempotent(t *testing.T) {
	once := newTestEngine(128)
	submit(t, once, AudioCommand{Kind: CMD_SET_EQ_LOW, Value: 3.0})
	renderFrames(once, 64)

	twice := newTestEngine(128)
	submit(t, twice, AudioCommand{Kind: CMD_SET_EQ_LOW, Value: 3.0})
	renderFrames(twice, 64)
	submit(t, twice, AudioCommand{Kind: CMD_SET_EQ_LOW, Value: 3.0})
	renderFrames(twice, 64)

	a, b := once.mixer.eqLow, twice.mixer.eqLow
	if a.b0 != b.b0 || a.b1 != b.b1 || a.b2 != b.b2 || a.a1 != b.a1 || a.a2 != b.a2 {
		t.Fatalf("repeated set_eq_low produced different coefficients")
	}
}

func TestStoppedEmitsSilence(t *testing.T) {
	e := newTestEngine(128)

	for i, s := range renderFrames(e, 512) {
		if s != 0 {
			t.Fatalf("sample %d = %g, want silence while stopped", i, s)
		}
	}
}

func TestPlayProducesSignal(t *testing.T) {
	e := newTestEngine(128)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})

	buf := renderFrames(e, 2048)
	var nonZero bool
	for _, s := range buf[1024:] {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatalf("running engine produced only silence")
	}
}

func TestStopSilencesWithoutResettingState(t *testing.T) {
	e := newTestEngine(128)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})
	renderFrames(e, 2048)

	submit(t, e, AudioCommand{Kind: CMD_STOP})
	buf := renderFrames(e, 2048)

	// The limiter's look-ahead line flushes its tail first; beyond that
	// the output must be exactly silent with flat EQ.
	flush := (e.mixer.limiter.Lookahead() + 2) * 2
	for i := flush; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("sample %d = %g after stop, want silence", i, buf[i])
		}
	}

	// Filter history survives the stop.
	if e.mixer.limiter.env[CH_LEFT] == 0 && e.mixer.limiter.env[CH_RIGHT] == 0 {
		t.Fatalf("expected limiter envelope to retain state across stop")
	}
}

func TestStatePublishedOnStepAdvance(t *testing.T) {
	e := newTestEngine(120)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})
	renderFrames(e, 6000)

	select {
	case st := <-e.States():
		if !st.IsPlaying || st.CurrentStep != 1 {
			t.Fatalf("published snapshot = %+v", st)
		}
	default:
		t.Fatalf("no snapshot published after step advance")
	}
}

func TestStatePublicationDropsWhenFull(t *testing.T) {
	e := newTestEngine(120)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})

	// Render far more steps than the state channel holds; the engine
	// must keep rendering and simply drop updates.
	renderFrames(e, 6000*(STATE_QUEUE_SIZE+8))

	if got := len(e.states); got != STATE_QUEUE_SIZE {
		t.Fatalf("state channel holds %d, want full at %d", got, STATE_QUEUE_SIZE)
	}
}

func TestSnapshotReportsCpuLoad(t *testing.T) {
	e := newTestEngine(128)
	submit(t, e, AudioCommand{Kind: CMD_PLAY})
	renderFrames(e, 4096)

	load := e.Snapshot().CPULoad
	if math.IsNaN(load) || load < 0 {
		t.Fatalf("cpu load = %g", load)
	}
}

func TestToneBankPhaseAdvances(t *testing.T) {
	tb := NewToneBank(48000)
	var frame [NUM_TRACKS]float64

	tb.NextFrame(frame[:])
	for i, s := range frame {
		if s != 0 {
			t.Fatalf("track %d first sample = %g, want 0 at phase 0", i, s)
		}
	}

	tb.NextFrame(frame[:])
	for i, s := range frame {
		if s == 0 {
			t.Fatalf("track %d second sample still 0, phase not advancing", i)
		}
		if math.Abs(s) > 1.0 {
			t.Fatalf("track %d sample %g out of range", i, s)
		}
	}
}
