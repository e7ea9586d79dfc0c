// audio_tracks.go - Shared track and master-effect parameter state

package main

import "sync"

const (
	DEFAULT_TRACK_VOLUME = 0.7
	DEFAULT_TRACK_PAN    = 0.0
)

// TrackState holds one track's mixing parameters. Mutated only via
// command application, read every buffer by the mixing stage.
type TrackState struct {
	Volume float64 `json:"volume"` // 0.0 to 1.0
	Pan    float64 `json:"pan"`    // -1.0 left to +1.0 right
	Muted  bool    `json:"muted"`
	Soloed bool    `json:"soloed"`
}

// TrackTable is the fixed-size track roster. Written rarely (on command)
// and read once per callback, so a reader-writer lock guards the whole
// access on either side.
type TrackTable struct {
	mu     sync.RWMutex
	states [NUM_TRACKS]TrackState
}

func NewTrackTable() *TrackTable {
	t := &TrackTable{}
	for i := range t.states {
		t.states[i] = TrackState{
			Volume: DEFAULT_TRACK_VOLUME,
			Pan:    DEFAULT_TRACK_PAN,
		}
	}
	return t
}

// Snapshot copies the table into dst and reports whether any track is
// soloed. Allocation-free for the callback path.
func (t *TrackTable) Snapshot(dst *[NUM_TRACKS]TrackState) bool {
	t.mu.RLock()
	*dst = t.states
	t.mu.RUnlock()

	for i := range dst {
		if dst[i].Soloed {
			return true
		}
	}
	return false
}

// SetVolume clamps to [0,1]. Out-of-range track indices are dropped
// silently - validation belongs upstream and the audio path cannot fail.
func (t *TrackTable) SetVolume(track int, v float64) {
	if track < 0 || track >= NUM_TRACKS {
		return
	}
	t.mu.Lock()
	t.states[track].Volume = clamp(v, 0.0, 1.0)
	t.mu.Unlock()
}

// SetPan clamps to [-1,1].
func (t *TrackTable) SetPan(track int, v float64) {
	if track < 0 || track >= NUM_TRACKS {
		return
	}
	t.mu.Lock()
	t.states[track].Pan = clamp(v, -1.0, 1.0)
	t.mu.Unlock()
}

func (t *TrackTable) ToggleMute(track int) {
	if track < 0 || track >= NUM_TRACKS {
		return
	}
	t.mu.Lock()
	t.states[track].Muted = !t.states[track].Muted
	t.mu.Unlock()
}

func (t *TrackTable) ToggleSolo(track int) {
	if track < 0 || track >= NUM_TRACKS {
		return
	}
	t.mu.Lock()
	t.states[track].Soloed = !t.states[track].Soloed
	t.mu.Unlock()
}

// MasterEffects holds the user-facing master parameters. These values
// are the source of truth: the Mixer's DSP objects are retargeted from a
// snapshot of this block at the start of every callback, never mutated
// directly by commands.
type MasterEffects struct {
	mu sync.RWMutex

	masterVolume     float64
	eqLow            float64 // dB
	eqMid            float64 // dB
	eqHigh           float64 // dB
	limiterThreshold float64 // 0.0 to 1.0
	clipAmount       float64 // drive
}

// MasterEffectsSnapshot is a plain copy of the parameter block.
type MasterEffectsSnapshot struct {
	MasterVolume     float64
	EqLow            float64
	EqMid            float64
	EqHigh           float64
	LimiterThreshold float64
	ClipAmount       float64
}

func NewMasterEffects(cfg *Config) *MasterEffects {
	return &MasterEffects{
		masterVolume:     cfg.MasterVolume,
		limiterThreshold: cfg.Limiter.Threshold,
		clipAmount:       cfg.Clip.Amount,
	}
}

func (fx *MasterEffects) Snapshot() MasterEffectsSnapshot {
	fx.mu.RLock()
	defer fx.mu.RUnlock()
	return MasterEffectsSnapshot{
		MasterVolume:     fx.masterVolume,
		EqLow:            fx.eqLow,
		EqMid:            fx.eqMid,
		EqHigh:           fx.eqHigh,
		LimiterThreshold: fx.limiterThreshold,
		ClipAmount:       fx.clipAmount,
	}
}

// SetMasterVolume clamps to [0,1].
func (fx *MasterEffects) SetMasterVolume(v float64) {
	fx.mu.Lock()
	fx.masterVolume = clamp(v, 0.0, 1.0)
	fx.mu.Unlock()
}

// SetEQBand stores one band gain in dB. Gains are deliberately
// unclamped - cut and boost ranges are a mixing decision.
func (fx *MasterEffects) SetEQBand(kind int, v float64) {
	fx.mu.Lock()
	switch kind {
	case CMD_SET_EQ_LOW:
		fx.eqLow = v
	case CMD_SET_EQ_MID:
		fx.eqMid = v
	case CMD_SET_EQ_HIGH:
		fx.eqHigh = v
	}
	fx.mu.Unlock()
}

func (fx *MasterEffects) SetLimiterThreshold(v float64) {
	fx.mu.Lock()
	fx.limiterThreshold = v
	fx.mu.Unlock()
}

func (fx *MasterEffects) SetClipAmount(v float64) {
	fx.mu.Lock()
	fx.clipAmount = v
	fx.mu.Unlock()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
