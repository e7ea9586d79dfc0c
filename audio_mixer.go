// audio_mixer.go - Master-bus DSP chain: 3-band EQ, look-ahead limiter, soft clipper, channel mixing

package main

import "math"

// EQ band roles. The low and high bands are shelves, the mid band is a
// peaking filter - all three are second-order RBJ biquad sections.
const (
	EQ_LOW_SHELF = iota
	EQ_PEAK
	EQ_HIGH_SHELF
)

// Stereo channel indices into per-channel DSP state.
const (
	CH_LEFT = iota
	CH_RIGHT
	NUM_CHANNELS
)

const (
	EQ_LOW_HZ  = 100.0  // Low shelf corner
	EQ_MID_HZ  = 1000.0 // Mid peak center
	EQ_HIGH_HZ = 8000.0 // High shelf corner

	EQ_LOW_Q  = 0.7
	EQ_MID_Q  = 1.0
	EQ_HIGH_Q = 0.7
)

const (
	LIMITER_LOOKAHEAD_SEC = 0.005  // 5ms look-ahead delay line
	LIMITER_ATTACK_COEF   = 0.9999 // Envelope rise smoothing
)

const MAX_CLIP_AMOUNT = 10.0

// EqBand is one second-order IIR section. A single coefficient set is
// shared across channels but the two-sample input/output history is kept
// per channel - reusing one history across left and right contaminates
// the filter state.
type EqBand struct {
	role      int
	frequency float64
	gain      float64 // dB
	q         float64

	// Normalized coefficients (a0 divided out)
	b0, b1, b2 float64
	a1, a2     float64

	// Per-channel history
	x1, x2 [NUM_CHANNELS]float64
	y1, y2 [NUM_CHANNELS]float64
}

// NewEqBand creates a band with the given role, center/corner frequency,
// gain in dB and Q at the given sample rate.
func NewEqBand(role int, frequency, gainDB, q, sampleRate float64) *EqBand {
	eq := &EqBand{
		role:      role,
		frequency: frequency,
		q:         q,
	}
	eq.Update(gainDB, sampleRate)
	return eq
}

// Update recomputes the coefficients for a new gain. History is kept so a
// parameter change causes a transient in the applied transfer function
// but no discontinuity in the stored filter state. Recomputing with an
// unchanged gain is numerically idempotent.
func (eq *EqBand) Update(gainDB, sampleRate float64) {
	eq.gain = gainDB

	a := math.Pow(10.0, gainDB/40.0)
	w0 := 2.0 * math.Pi * eq.frequency / sampleRate
	cosW := math.Cos(w0)
	sinW := math.Sin(w0)
	alpha := sinW / (2.0 * eq.q)

	var b0, b1, b2, a0, a1, a2 float64
	switch eq.role {
	case EQ_LOW_SHELF:
		sqrtA := math.Sqrt(a)
		b0 = a * ((a + 1) - (a-1)*cosW + 2*sqrtA*alpha)
		b1 = 2 * a * ((a - 1) - (a+1)*cosW)
		b2 = a * ((a + 1) - (a-1)*cosW - 2*sqrtA*alpha)
		a0 = (a + 1) + (a-1)*cosW + 2*sqrtA*alpha
		a1 = -2 * ((a - 1) + (a+1)*cosW)
		a2 = (a + 1) + (a-1)*cosW - 2*sqrtA*alpha
	case EQ_HIGH_SHELF:
		sqrtA := math.Sqrt(a)
		b0 = a * ((a + 1) + (a-1)*cosW + 2*sqrtA*alpha)
		b1 = -2 * a * ((a - 1) + (a+1)*cosW)
		b2 = a * ((a + 1) + (a-1)*cosW - 2*sqrtA*alpha)
		a0 = (a + 1) - (a-1)*cosW + 2*sqrtA*alpha
		a1 = 2 * ((a - 1) - (a+1)*cosW)
		a2 = (a + 1) - (a-1)*cosW - 2*sqrtA*alpha
	default: // EQ_PEAK
		b0 = 1 + alpha*a
		b1 = -2 * cosW
		b2 = 1 - alpha*a
		a0 = 1 + alpha/a
		a1 = -2 * cosW
		a2 = 1 - alpha/a
	}

	inv := 1.0 / a0
	eq.b0 = b0 * inv
	eq.b1 = b1 * inv
	eq.b2 = b2 * inv
	eq.a1 = a1 * inv
	eq.a2 = a2 * inv
}

// Process runs one sample of the given channel through the direct-form
// recurrence. O(1), allocation-free.
func (eq *EqBand) Process(ch int, in float64) float64 {
	out := eq.b0*in + eq.b1*eq.x1[ch] + eq.b2*eq.x2[ch] -
		eq.a1*eq.y1[ch] - eq.a2*eq.y2[ch]

	eq.x2[ch] = eq.x1[ch]
	eq.x1[ch] = in
	eq.y2[ch] = eq.y1[ch]
	eq.y1[ch] = out

	return out
}

// Limiter applies look-ahead peak limiting: the gain decision is made
// from the undelayed envelope and applied to a sample delayed by the
// look-ahead length. Delay line, write position and envelope are kept
// per channel; threshold and release are shared.
type Limiter struct {
	threshold   float64 // 0.0 to 1.0, linear
	release     float64 // seconds
	releaseCoef float64
	lookahead   int
	sampleRate  float64

	buf [NUM_CHANNELS][]float64
	pos [NUM_CHANNELS]int
	env [NUM_CHANNELS]float64
}

func NewLimiter(sampleRate, threshold, release float64) *Limiter {
	lookahead := int(math.Ceil(sampleRate * LIMITER_LOOKAHEAD_SEC))
	if lookahead < 1 {
		lookahead = 1
	}
	l := &Limiter{
		lookahead:  lookahead,
		sampleRate: sampleRate,
	}
	for ch := range l.buf {
		l.buf[ch] = make([]float64, lookahead)
	}
	l.SetThreshold(threshold)
	l.SetRelease(release)
	return l
}

// SetThreshold clamps to [0,1].
func (l *Limiter) SetThreshold(v float64) {
	l.threshold = math.Min(math.Max(v, 0.0), 1.0)
}

// SetRelease sets the release time constant in seconds.
func (l *Limiter) SetRelease(sec float64) {
	if sec <= 0 {
		sec = 0.001
	}
	l.release = sec
	l.releaseCoef = math.Exp(-1.0 / (sec * l.sampleRate))
}

// Lookahead reports the delay line length in samples.
func (l *Limiter) Lookahead() int {
	return l.lookahead
}

// Process emits the sample written lookahead positions ago, scaled by
// the gain required to keep the current envelope at or below threshold.
// Reading the ring slot before overwriting it yields exactly lookahead
// samples of delay between a write and its corresponding read.
func (l *Limiter) Process(ch int, in float64) float64 {
	delayed := l.buf[ch][l.pos[ch]]
	l.buf[ch][l.pos[ch]] = in
	l.pos[ch] = (l.pos[ch] + 1) % l.lookahead

	abs := math.Abs(in)
	if abs > l.env[ch] {
		l.env[ch] = LIMITER_ATTACK_COEF*l.env[ch] + (1.0-LIMITER_ATTACK_COEF)*abs
	} else {
		l.env[ch] = l.releaseCoef*l.env[ch] + (1.0-l.releaseCoef)*abs
	}

	gain := 1.0
	if l.env[ch] > l.threshold {
		gain = l.threshold / l.env[ch]
	}

	return delayed * gain
}

// SoftClipper compresses the excess above its threshold for warm
// saturation. Stateless, so one instance serves both channels.
type SoftClipper struct {
	threshold float64
	amount    float64 // drive
}

// Process is the identity below threshold; above it the excess magnitude
// is compressed through excess/(1+excess*amount), sign preserved, output
// hard-capped at unit magnitude.
func (sc *SoftClipper) Process(in float64) float64 {
	abs := math.Abs(in)
	if abs < sc.threshold {
		return in
	}
	sign := 1.0
	if in < 0 {
		sign = -1.0
	}
	excess := abs - sc.threshold
	clipped := sc.threshold + excess/(1.0+excess*sc.amount)
	return sign * math.Min(clipped, 1.0)
}

// TrackFrame is one track's contribution to a single output frame.
type TrackFrame struct {
	Sample float64
	Volume float64
	Pan    float64 // -1 left .. +1 right
	Muted  bool
	Soloed bool
}

// Mixer owns the master bus: three EQ stages, the limiter, the clipper
// and the master volume. It is constructed once at engine start with the
// device sample rate and mutated in place via setters; it is never
// reconstructed while audio is flowing.
type Mixer struct {
	eqLow  *EqBand
	eqMid  *EqBand
	eqHigh *EqBand

	limiter *Limiter
	clipper SoftClipper

	masterVolume float64
	sampleRate   float64
}

func NewMixer(sampleRate float64, cfg *Config) *Mixer {
	return &Mixer{
		eqLow:   NewEqBand(EQ_LOW_SHELF, cfg.EQ.LowHz, 0.0, EQ_LOW_Q, sampleRate),
		eqMid:   NewEqBand(EQ_PEAK, cfg.EQ.MidHz, 0.0, EQ_MID_Q, sampleRate),
		eqHigh:  NewEqBand(EQ_HIGH_SHELF, cfg.EQ.HighHz, 0.0, EQ_HIGH_Q, sampleRate),
		limiter: NewLimiter(sampleRate, cfg.Limiter.Threshold, cfg.Limiter.Release),
		clipper: SoftClipper{
			threshold: cfg.Clip.Threshold,
			amount:    cfg.Clip.Amount,
		},
		masterVolume: cfg.MasterVolume,
		sampleRate:   sampleRate,
	}
}

// MixChannels combines per-track samples into a stereo pair. Muted
// tracks are skipped, as are non-soloed tracks while any track is
// soloed. Volume is applied first, then constant-power panning maps pan
// to an angle in [0, pi/2] and uses cosine/sine as left/right gains.
// Tracks sum without normalization - the limiter downstream is the
// safety net against summing overflow.
func (m *Mixer) MixChannels(tracks []TrackFrame, anySoloed bool) (float64, float64) {
	var left, right float64

	for i := range tracks {
		tr := &tracks[i]
		if tr.Muted || (anySoloed && !tr.Soloed) {
			continue
		}

		s := tr.Sample * tr.Volume

		angle := (tr.Pan + 1.0) * math.Pi / 4.0
		left += s * math.Cos(angle)
		right += s * math.Sin(angle)
	}

	return left, right
}

// ProcessMaster runs one stereo frame through the fixed master chain:
// low shelf -> mid peak -> high shelf -> master volume -> limiter ->
// soft clipper -> float32. EQ runs before limiting so tonal shaping does
// not fight gain reduction; limiting runs before clipping so the limiter
// handles transients and the clipper saturates sustained excess.
func (m *Mixer) ProcessMaster(left, right float64) (float32, float32) {
	l := m.eqHigh.Process(CH_LEFT, m.eqMid.Process(CH_LEFT, m.eqLow.Process(CH_LEFT, left)))
	r := m.eqHigh.Process(CH_RIGHT, m.eqMid.Process(CH_RIGHT, m.eqLow.Process(CH_RIGHT, right)))

	l *= m.masterVolume
	r *= m.masterVolume

	l = m.limiter.Process(CH_LEFT, l)
	r = m.limiter.Process(CH_RIGHT, r)

	l = m.clipper.Process(l)
	r = m.clipper.Process(r)

	return float32(l), float32(r)
}

// SetEQ retargets all three band gains in dB. Idempotent for unchanged
// values - it is re-applied from the parameter snapshot every callback.
func (m *Mixer) SetEQ(lowDB, midDB, highDB float64) {
	m.eqLow.Update(lowDB, m.sampleRate)
	m.eqMid.Update(midDB, m.sampleRate)
	m.eqHigh.Update(highDB, m.sampleRate)
}

// SetMasterVolume clamps to [0,1].
func (m *Mixer) SetMasterVolume(v float64) {
	m.masterVolume = math.Min(math.Max(v, 0.0), 1.0)
}

func (m *Mixer) SetLimiterThreshold(v float64) {
	m.limiter.SetThreshold(v)
}

// SetClipAmount clamps the drive to [0, MAX_CLIP_AMOUNT].
func (m *Mixer) SetClipAmount(v float64) {
	m.clipper.amount = math.Min(math.Max(v, 0.0), MAX_CLIP_AMOUNT)
}
