// control_terminal.go - Raw-mode keyboard control surface

package main

import (
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Solo keys are the shifted digit row, one per track.
var soloKeys = [NUM_TRACKS]byte{'!', '@', '#', '$', '%', '^', '&'}

// TerminalControl reads raw stdin and translates keystrokes into engine
// commands. Only instantiated in main.go for interactive use - never in
// tests.
//
// Keys: space play/stop, +/- master volume, [/] tempo, 1-7 mute,
// shift-1..7 solo, q quit.
type TerminalControl struct {
	engine *AudioEngine
	log    *slog.Logger

	stopCh       chan struct{}
	done         chan struct{}
	quit         chan struct{}
	stopped      sync.Once
	quitOnce     sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State

	// Local shadows for the relative volume/tempo keys.
	masterVolume float64
	bpm          int
}

func NewTerminalControl(engine *AudioEngine, cfg *Config, log *slog.Logger) *TerminalControl {
	return &TerminalControl{
		engine:       engine,
		log:          log,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		quit:         make(chan struct{}),
		masterVolume: cfg.MasterVolume,
		bpm:          cfg.BPM,
	}
}

// Quit is closed when the user presses the quit key.
func (tc *TerminalControl) Quit() <-chan struct{} {
	return tc.quit
}

// Start puts stdin into raw mode and begins reading in a goroutine.
// Call Stop to restore the terminal.
func (tc *TerminalControl) Start() {
	tc.fd = int(os.Stdin.Fd())

	if !term.IsTerminal(tc.fd) {
		tc.log.Debug("stdin is not a terminal, keyboard control disabled")
		close(tc.done)
		return
	}

	oldState, err := term.MakeRaw(tc.fd)
	if err != nil {
		tc.log.Warn("failed to set raw mode", "err", err)
		close(tc.done)
		return
	}
	tc.oldTermState = oldState

	if err := syscall.SetNonblock(tc.fd, true); err != nil {
		tc.log.Warn("failed to set nonblocking stdin", "err", err)
		_ = term.Restore(tc.fd, tc.oldTermState)
		tc.oldTermState = nil
		close(tc.done)
		return
	}
	tc.nonblockSet = true

	go func() {
		defer close(tc.done)
		buf := make([]byte, 1)

		for {
			select {
			case <-tc.stopCh:
				return
			default:
			}

			n, err := syscall.Read(tc.fd, buf)
			if n > 0 {
				tc.handleKey(buf[0])
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil || n == 0 {
				return
			}
		}
	}()
}

func (tc *TerminalControl) handleKey(key byte) {
	switch {
	case key == ' ':
		if tc.engine.Snapshot().IsPlaying {
			tc.submit(AudioCommand{Kind: CMD_STOP})
		} else {
			tc.submit(AudioCommand{Kind: CMD_PLAY})
		}
	case key == '+' || key == '=':
		tc.masterVolume = clamp(tc.masterVolume+0.05, 0.0, 1.0)
		tc.submit(AudioCommand{Kind: CMD_SET_VOLUME, Value: tc.masterVolume})
	case key == '-':
		tc.masterVolume = clamp(tc.masterVolume-0.05, 0.0, 1.0)
		tc.submit(AudioCommand{Kind: CMD_SET_VOLUME, Value: tc.masterVolume})
	case key == ']':
		tc.bpm += 4
		tc.submit(AudioCommand{Kind: CMD_SET_BPM, Value: float64(tc.bpm)})
	case key == '[':
		if tc.bpm > 4 {
			tc.bpm -= 4
		}
		tc.submit(AudioCommand{Kind: CMD_SET_BPM, Value: float64(tc.bpm)})
	case key >= '1' && key <= '7':
		tc.submit(AudioCommand{Kind: CMD_TOGGLE_MUTE, Track: int(key - '1')})
	case key == 'q' || key == 0x03: // q or Ctrl-C
		tc.quitOnce.Do(func() { close(tc.quit) })
	default:
		for i, k := range soloKeys {
			if key == k {
				tc.submit(AudioCommand{Kind: CMD_TOGGLE_SOLO, Track: i})
				return
			}
		}
	}
}

func (tc *TerminalControl) submit(cmd AudioCommand) {
	if err := tc.engine.Submit(cmd); err != nil {
		tc.log.Debug("command dropped", "err", err)
	}
}

// Stop restores the terminal and waits for the read loop to exit.
func (tc *TerminalControl) Stop() {
	tc.stopped.Do(func() {
		close(tc.stopCh)
		<-tc.done
		if tc.nonblockSet {
			_ = syscall.SetNonblock(tc.fd, false)
		}
		if tc.oldTermState != nil {
			_ = term.Restore(tc.fd, tc.oldTermState)
		}
	})
}
