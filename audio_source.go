// audio_source.go - Per-track signal sources feeding the mixer

package main

import "math"

// TrackSource delivers one sample per track per frame into a
// caller-owned slice. The engine treats the source as an injected
// collaborator, so a sequencer or sample-playback subsystem can replace
// the built-in tone bank without touching the mixing logic.
type TrackSource interface {
	// NextFrame fills dst[0:NUM_TRACKS] with the next sample of each
	// track. Must be allocation-free.
	NextFrame(dst []float64)
}

// Fixed test-tone frequency table, one octave apart per track.
var toneFreqs = [NUM_TRACKS]float64{55, 110, 220, 440, 880, 1760, 3520}

// ToneBank is the placeholder signal source: one sine oscillator per
// track keyed by the fixed frequency table.
type ToneBank struct {
	sampleRate float64
	phases     [NUM_TRACKS]float64 // normalized 0..1
}

func NewToneBank(sampleRate int) *ToneBank {
	return &ToneBank{sampleRate: float64(sampleRate)}
}

func (tb *ToneBank) NextFrame(dst []float64) {
	n := len(dst)
	if n > NUM_TRACKS {
		n = NUM_TRACKS
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Sin(tb.phases[i] * 2.0 * math.Pi)
		tb.phases[i] += toneFreqs[i] / tb.sampleRate
		if tb.phases[i] >= 1.0 {
			tb.phases[i] -= 1.0
		}
	}
}
