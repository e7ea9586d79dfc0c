// audio_output.go - Audio output backend interface and factory

package main

import "fmt"

// Output backend selectors.
const (
	AUDIO_BACKEND_OTO = iota
)

// AudioOutput is implemented by all output backends. The backend pulls
// interleaved stereo float32 frames from the engine on its own cadence;
// each pull is one callback invocation.
type AudioOutput interface {
	// Start begins pulling frames from the engine.
	Start()
	// Stop pauses output without releasing the device.
	Stop()
	// Close releases the device.
	Close()
	// IsStarted returns true while output is running.
	IsStarted() bool
}

// NewAudioOutput opens the requested backend on the default output
// device. Device-unavailable and stream-setup failures are returned as
// errors - fatal to the engine instance, never a crash.
func NewAudioOutput(backend int, sampleRate int, engine *AudioEngine) (AudioOutput, error) {
	switch backend {
	case AUDIO_BACKEND_OTO:
		player, err := NewOtoPlayer(sampleRate)
		if err != nil {
			return nil, err
		}
		player.SetupPlayer(engine)
		return player, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %d", backend)
	}
}
