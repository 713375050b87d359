// Package voice implements the per-note synthesis state machine: envelopes,
// LFOs, a phase-accumulator oscillator with selectable interpolation, and a
// resonant low-pass filter, driven by a voice's resolved SF2 generator
// array and modulator list (spec.md §4.4). The envelope/LFO/oscillator
// shape is carried over from a simpler fixed-parameter wavetable voice
// engine, generalized here to read every parameter from the resolved
// generator array instead of a fixed Params struct.
package voice

import (
	"math"

	"github.com/oxisynth-go/sf2synth/internal/gen"
	"github.com/oxisynth-go/sf2synth/internal/lfo"
	"github.com/oxisynth-go/sf2synth/internal/modulator"
	"github.com/oxisynth-go/sf2synth/internal/soundfont"
)

// Interpolation selects the oscillator's resampling method.
type Interpolation int

const (
	InterpNone Interpolation = iota
	InterpLinear
	InterpCubic4pt
	InterpSinc7pt
)

// LoopMode mirrors the sampleModes generator's legal values.
type LoopMode int

const (
	LoopNone         LoopMode = 0
	LoopContinuous   LoopMode = 1
	LoopUnusedAlias  LoopMode = 2 // SF2 spec: reserved, behaves as LoopNone
	LoopUntilRelease LoopMode = 3
)

type envStage int

const (
	stageDelay envStage = iota
	stageAttack
	stageHold
	stageDecay
	stageSustain
	stageRelease
	stageOff
)

// envTimes holds the per-stage sample counts and sustain target, computed
// once when a voice starts from its resolved generator array.
type envTimes struct {
	delay, attack, hold, decay, release int
	sustain                             float64 // 0..1 level retained through sustain
}

type envelope struct {
	times        envTimes
	stage        envStage
	level        float64
	samplesIn    int
	decayCoeff   float64
	releaseCoeff float64
	releaseFrom  float64
}

func (e *envelope) start(t envTimes) {
	e.times = t
	e.stage = stageDelay
	e.level = 0
	e.samplesIn = 0
	if t.delay == 0 {
		e.stage = stageAttack
	}
}

func (e *envelope) noteOff() {
	if e.stage == stageOff {
		return
	}
	e.releaseFrom = e.level
	e.stage = stageRelease
	e.samplesIn = 0
	if e.times.release <= 0 {
		e.level = 0
		e.stage = stageOff
		return
	}
	floor := 0.0001
	from := e.releaseFrom
	if from <= floor {
		e.level = 0
		e.stage = stageOff
		return
	}
	e.releaseCoeff = math.Pow(floor/from, 1.0/float64(e.times.release))
}

// advance steps the envelope by one sample and returns its current level.
func (e *envelope) advance() float64 {
	switch e.stage {
	case stageDelay:
		e.samplesIn++
		if e.samplesIn >= e.times.delay {
			e.stage = stageAttack
			e.samplesIn = 0
		}
		return 0
	case stageAttack:
		n := e.times.attack
		if n <= 0 {
			e.level = 1
		} else {
			e.level += 1.0 / float64(n)
		}
		e.samplesIn++
		if e.level >= 1 {
			e.level = 1
			e.stage = stageHold
			e.samplesIn = 0
		}
		return e.level
	case stageHold:
		e.samplesIn++
		if e.samplesIn >= e.times.hold {
			e.stage = stageDecay
			e.samplesIn = 0
			if e.times.decay <= 0 {
				e.level = e.times.sustain
				e.stage = stageSustain
			} else {
				sustain := e.times.sustain
				if sustain < 0.0001 {
					sustain = 0.0001
				}
				e.decayCoeff = math.Pow(sustain, 1.0/float64(e.times.decay))
			}
		}
		return e.level
	case stageDecay:
		e.level *= e.decayCoeff
		e.samplesIn++
		if e.level <= e.times.sustain || e.samplesIn >= e.times.decay {
			e.level = e.times.sustain
			e.stage = stageSustain
		}
		return e.level
	case stageSustain:
		return e.level
	case stageRelease:
		e.level *= e.releaseCoeff
		e.samplesIn++
		if e.level <= 0.0001 || e.samplesIn >= e.times.release {
			e.level = 0
			e.stage = stageOff
		}
		return e.level
	default: // stageOff
		return 0
	}
}

func (e *envelope) done() bool { return e.stage == stageOff }

// silenceThreshold is the linear amplitude fraction below which a release
// tail is treated as inaudible, matching the envelope's own release floor
// (roughly -80dB).
const silenceThreshold = 0.0001

// Controllers snapshots the MIDI-side signals a voice's modulators read.
// The channel owner refreshes this once per render block; it is cheap to
// copy by value.
type Controllers struct {
	Velocity              int // fixed at note-on, 0-127
	Key                    int // fixed at note-on, 0-127
	PolyPressure          int // 0-127
	ChannelPressure       int // 0-127
	PitchWheel            int // 0-16383, 8192 = center
	PitchWheelSensitivity int // semitones, 0-127
	CC                    [128]int
}

// Voice is one active synthesis process: one sample, one set of resolved
// generators and modulators, one envelope pair, one set of LFOs, one
// filter.
type Voice struct {
	NoteID         uint64
	Channel        int
	Key            uint8
	Velocity       int
	ExclusiveClass int

	sample *soundfont.Sample
	gen    gen.Array
	mods   []modulator.Mod

	outSampleRate float64
	phase         float64
	loopMode      LoopMode

	volEnv envelope
	modEnv envelope

	pitchLFO  lfo.LFO
	vibLFO    lfo.LFO
	filterLFO lfo.LFO
	lfoDelaySamplesPitch int
	lfoDelaySamplesVib   int
	lfoDelaySamplesFilt  int
	lfoElapsed           int

	interp Interpolation

	// biquad low-pass state, Direct Form I.
	fb0, fb1, fb2, fa1, fa2 float64
	fx1, fx2, fy1, fy2      float64

	finished bool
	age      int // samples rendered since New, for the pool's minimum-note-length steal guard
}

// Params bundles the construction-time inputs for New, gathered by the
// note-on resolution path (spec.md §4.3) after generator/modulator
// layering is complete.
type Params struct {
	NoteID         uint64
	Channel        int
	Key            uint8
	Velocity       int
	Sample         *soundfont.Sample
	Gen            gen.Array
	Mods           []modulator.Mod
	OutSampleRate  float64
	Interpolation  Interpolation
}

// New starts a voice: resolves envelope/LFO timing from the generator
// array and positions the oscillator at the sample start.
func New(p Params, ctrl Controllers) *Voice {
	v := &Voice{
		NoteID:        p.NoteID,
		Channel:       p.Channel,
		Key:           p.Key,
		Velocity:      p.Velocity,
		sample:        p.Sample,
		gen:           p.Gen,
		mods:          p.Mods,
		outSampleRate: p.OutSampleRate,
		interp:        p.Interpolation,
	}
	v.ExclusiveClass = int(p.Gen[gen.ExclusiveClass].Val)
	v.loopMode = LoopMode(int(p.Gen[gen.SampleModes].Val))

	sr := v.outSampleRate

	key := int(p.Key)
	volTimes := envTimes{
		delay:   tcToSamples(p.Gen[gen.DelayVolEnv].Val, sr),
		attack:  tcToSamples(p.Gen[gen.AttackVolEnv].Val, sr),
		hold:    tcToSamples(keyScaledTC(p.Gen[gen.HoldVolEnv].Val, p.Gen[gen.KeynumToVolEnvHold].Val, key), sr),
		decay:   tcToSamples(keyScaledTC(p.Gen[gen.DecayVolEnv].Val, p.Gen[gen.KeynumToVolEnvDecay].Val, key), sr),
		release: tcToSamples(p.Gen[gen.ReleaseVolEnv].Val, sr),
		sustain: cbToLinear(p.Gen[gen.SustainVolEnv].Val),
	}
	v.volEnv.start(volTimes)

	modTimes := envTimes{
		delay:   tcToSamples(p.Gen[gen.DelayModEnv].Val, sr),
		attack:  tcToSamples(p.Gen[gen.AttackModEnv].Val, sr),
		hold:    tcToSamples(keyScaledTC(p.Gen[gen.HoldModEnv].Val, p.Gen[gen.KeynumToModEnvHold].Val, key), sr),
		decay:   tcToSamples(keyScaledTC(p.Gen[gen.DecayModEnv].Val, p.Gen[gen.KeynumToModEnvDecay].Val, key), sr),
		release: tcToSamples(p.Gen[gen.ReleaseModEnv].Val, sr),
		sustain: 1 - clamp01(p.Gen[gen.SustainModEnv].Val/1000),
	}
	v.modEnv.start(modTimes)

	v.pitchLFO.Set(1, lfoHz(p.Gen[gen.FreqModLFO].Val), lfo.WaveTriangle)
	v.vibLFO.Set(1, lfoHz(p.Gen[gen.FreqVibLFO].Val), lfo.WaveTriangle)
	v.filterLFO.Set(1, lfoHz(p.Gen[gen.FreqModLFO].Val), lfo.WaveTriangle)
	v.lfoDelaySamplesPitch = tcToSamples(p.Gen[gen.DelayModLFO].Val, sr)
	v.lfoDelaySamplesFilt = v.lfoDelaySamplesPitch
	v.lfoDelaySamplesVib = tcToSamples(p.Gen[gen.DelayVibLFO].Val, sr)

	if p.Sample != nil {
		v.phase = float64(p.Gen[gen.StartAddrOfs].Val + p.Gen[gen.StartAddrCoarseOfs].Val*32768)
		if v.phase < 0 {
			v.phase = 0
		}
	}

	return v
}

// Finished reports whether the voice has reached the end of its volume
// envelope (or run off the end of a non-looping sample) and should be
// returned to the pool.
func (v *Voice) Finished() bool { return v.finished }

// State is the voice lifecycle state (spec.md §4.1): Clean (never started,
// unused zero value), On (playing), Sustained (note released, envelope in
// release), Off (silent, eligible for immediate reuse).
type State int

const (
	StateClean State = iota
	StateOn
	StateSustained
	StateOff
)

// State reports the voice's current lifecycle stage for the pool's kill
// policy (spec.md §4.6).
func (v *Voice) State() State {
	switch {
	case v.finished:
		return StateOff
	case v.volEnv.stage == stageRelease:
		return StateSustained
	default:
		return StateOn
	}
}

// Amplitude returns the current volume envelope level (0..1), used by the
// pool's kill policy to rank voices for eviction.
func (v *Voice) Amplitude() float64 { return v.volEnv.level }

// Age returns the number of samples rendered since the voice started,
// used by the pool to guarantee a minimum sounding duration before a steal.
func (v *Voice) Age() int { return v.age }

// SetOutputSampleRate updates the render sample rate. The oscillator
// increment, LFO frequency and filter coefficients read v.outSampleRate
// directly each block, so they follow the new rate. Envelope stage lengths
// and LFO delays were converted to sample counts in New and are not
// rescaled: a voice already sounding keeps those timings in samples of the
// old rate.
func (v *Voice) SetOutputSampleRate(sr float64) {
	v.outSampleRate = sr
}

// NoteOff begins the release stage of both envelopes.
func (v *Voice) NoteOff() {
	v.volEnv.noteOff()
	v.modEnv.noteOff()
}

// Off immediately silences the voice (all-sounds-off, exclusive-class kill).
func (v *Voice) Off() {
	v.finished = true
}

// modSum returns the total contribution of every modulator routed to dest,
// plus the base resolved generator value.
func (v *Voice) modSum(ctrl *Controllers, dest gen.Index) float64 {
	total := v.gen[dest].Val
	for _, m := range v.mods {
		if m.Dest != dest {
			continue
		}
		s1 := evalSource(m.Src1, ctrl)
		s2 := 1.0
		if !(m.Src2.Controller == modulator.CtrlNone && m.Src2.Palette == modulator.PaletteGeneral) {
			s2 = evalSource(m.Src2, ctrl)
		}
		contrib := s1 * s2 * m.Amount
		if m.Transform == modulator.TransformAbs {
			contrib = math.Abs(contrib)
		}
		total += contrib
	}
	return total
}

func evalSource(s modulator.Source, ctrl *Controllers) float64 {
	if s.Controller == modulator.CtrlNone && s.Palette == modulator.PaletteGeneral {
		return 1
	}
	var raw float64
	switch s.Controller {
	case modulator.CtrlNoteOnVelocity:
		raw = float64(ctrl.Velocity) / 127
	case modulator.CtrlNoteOnKey:
		raw = float64(ctrl.Key) / 127
	case modulator.CtrlPolyPressure:
		raw = float64(ctrl.PolyPressure) / 127
	case modulator.CtrlChannelPressure:
		raw = float64(ctrl.ChannelPressure) / 127
	case modulator.CtrlPitchWheel:
		raw = float64(ctrl.PitchWheel) / 16383
	case modulator.CtrlPitchWheelSensitivity:
		raw = float64(ctrl.PitchWheelSensitivity) / 127
	case modulator.CtrlMIDI:
		raw = float64(ctrl.CC[s.MIDICC]) / 127
	default:
		raw = 0
	}
	return s.Apply(raw)
}

// Block renders n frames into outL/outR (pre-mixed, not yet gained by
// channel/master volume) and accumulates the reverb/chorus send amounts
// into sendRev/sendCho. ctrl must reflect the owning channel's current
// controller state. Returns early (writes nothing further) once Finished.
func (v *Voice) Block(ctrl Controllers, outL, outR, sendRev, sendCho []float64) {
	n := len(outL)
	if v.finished || v.sample == nil || len(v.sample.Data) == 0 {
		return
	}
	v.age += n

	attenCb := v.modSum(&ctrl, gen.InitialAttenuation)
	gainLin := cbToLinear(attenCb)

	panCents := v.modSum(&ctrl, gen.Pan)
	panFrac := clamp01((panCents + 500) / 1000)
	angle := panFrac * math.Pi / 2
	leftGain, rightGain := math.Cos(angle), math.Sin(angle)

	revFrac := clamp01(v.modSum(&ctrl, gen.ReverbEffectsSend) / 1000)
	choFrac := clamp01(v.modSum(&ctrl, gen.ChorusEffectsSend) / 1000)

	rootKey := float64(v.sample.OriginalPitch)
	if ov := v.gen[gen.OverrideRootKey].Val; ov >= 0 {
		rootKey = ov
	}
	scaleTuning := v.gen[gen.ScaleTuning].Val

	fc0 := v.modSum(&ctrl, gen.InitialFilterFc)
	modLfoToFc := v.gen[gen.ModLFOToFilterFc].Val
	modEnvToFc := v.gen[gen.ModEnvToFilterFc].Val
	qCb := v.modSum(&ctrl, gen.InitialFilterQ)

	modLfoToPitch := v.gen[gen.ModLFOToPitch].Val
	vibLfoToPitch := v.gen[gen.VibLFOToPitch].Val
	modEnvToPitch := v.gen[gen.ModEnvToPitch].Val

	coarseTune := v.modSum(&ctrl, gen.CoarseTune)
	fineTune := v.modSum(&ctrl, gen.FineTune)

	loopStart := float64(v.sample.LoopStart)
	loopEnd := float64(v.sample.LoopEnd)
	sampleLen := float64(len(v.sample.Data))

	// Peak amplitude fraction of full scale, precomputed once per sample at
	// load time. Scaled by the current envelope gain each sample, this lets
	// a release tail on a quiet sample finish early instead of rendering
	// down to the envelope's own floor.
	peakFrac := float64(v.sample.PeakAmplitude) / 32768

	for i := 0; i < n; i++ {
		volLevel := v.volEnv.advance()
		modLevel := v.modEnv.advance()
		if v.volEnv.done() {
			v.finished = true
		} else if v.volEnv.stage == stageRelease && gainLin*volLevel*peakFrac < silenceThreshold {
			v.finished = true
		}

		var pitchLfoVal, vibLfoVal, filtLfoVal float64
		v.lfoElapsed++
		if v.lfoElapsed >= v.lfoDelaySamplesPitch {
			pitchLfoVal = v.pitchLFO.Sample(v.outSampleRate)
			filtLfoVal = v.filterLFO.Sample(v.outSampleRate)
		}
		if v.lfoElapsed >= v.lfoDelaySamplesVib {
			vibLfoVal = v.vibLFO.Sample(v.outSampleRate)
		}

		pitchCents := (float64(v.Key)-rootKey)*scaleTuning/100 +
			float64(v.sample.PitchCorrection) + coarseTune*100 + fineTune +
			modLfoToPitch*pitchLfoVal + vibLfoToPitch*vibLfoVal + modEnvToPitch*modLevel
		ratio := math.Pow(2, pitchCents/1200)
		increment := (float64(v.sample.SampleRate) / v.outSampleRate) * ratio

		fc := fc0 + modLfoToFc*filtLfoVal + modEnvToFc*modLevel
		cutoffHz := 440 * math.Pow(2, (fc-6900)/1200)
		if cutoffHz < 20 {
			cutoffHz = 20
		}
		if cutoffHz > v.outSampleRate/2-1 {
			cutoffHz = v.outSampleRate/2 - 1
		}
		qLin := math.Pow(10, (qCb/10)/20)
		if qLin < 0.707 {
			qLin = 0.707
		}
		v.setFilter(cutoffHz, qLin)

		raw := v.sampleAt(v.phase, loopStart, loopEnd, sampleLen)
		filtered := v.applyFilter(raw)

		atten := gainLin * volLevel
		sig := filtered * atten / 32768

		outL[i] += sig * leftGain
		outR[i] += sig * rightGain
		sendRev[i] += sig * revFrac
		sendCho[i] += sig * choFrac

		v.advancePhase(increment, loopStart, loopEnd, sampleLen)
		if v.finished {
			break
		}
	}
}

func (v *Voice) advancePhase(increment, loopStart, loopEnd, sampleLen float64) {
	looping := v.loopMode == LoopContinuous || (v.loopMode == LoopUntilRelease && v.volEnv.stage != stageRelease && v.volEnv.stage != stageOff)
	v.phase += increment
	if looping && loopEnd > loopStart {
		for v.phase >= loopEnd {
			v.phase -= loopEnd - loopStart
		}
	} else if v.phase >= sampleLen {
		v.finished = true
	}
}

func (v *Voice) sampleAt(pos, loopStart, loopEnd, sampleLen float64) float64 {
	data := v.sample.Data
	n := len(data)
	if n == 0 {
		return 0
	}
	looping := v.loopMode == LoopContinuous || (v.loopMode == LoopUntilRelease && v.volEnv.stage != stageRelease && v.volEnv.stage != stageOff)

	at := func(i int) float64 {
		if i < 0 {
			i = 0
		}
		if looping && loopEnd > loopStart {
			lo, hi := int(loopStart), int(loopEnd)
			for i >= hi {
				i -= hi - lo
			}
		} else if i >= n {
			i = n - 1
		}
		return float64(data[i])
	}

	idx := int(math.Floor(pos))
	frac := pos - math.Floor(pos)

	switch v.interp {
	case InterpNone:
		return at(idx)
	case InterpLinear:
		return at(idx)*(1-frac) + at(idx+1)*frac
	case InterpCubic4pt:
		y0, y1, y2, y3 := at(idx-1), at(idx), at(idx+1), at(idx+2)
		return cubicInterp(y0, y1, y2, y3, frac)
	default: // InterpSinc7pt
		var sum, wsum float64
		for k := -3; k <= 3; k++ {
			x := frac - float64(k)
			w := sincWindowed(x)
			sum += at(idx+k) * w
			wsum += w
		}
		if wsum == 0 {
			return at(idx)
		}
		return sum / wsum
	}
}

func cubicInterp(y0, y1, y2, y3, x float64) float64 {
	a0 := y3 - y2 - y0 + y1
	a1 := y0 - y1 - a0
	a2 := y2 - y0
	a3 := y1
	return a0*x*x*x + a1*x*x + a2*x + a3
}

func sincWindowed(x float64) float64 {
	if x == 0 {
		return 1
	}
	const radius = 3.0
	if x < -radius || x > radius {
		return 0
	}
	pix := math.Pi * x
	sinc := math.Sin(pix) / pix
	window := 0.5 * (1 + math.Cos(math.Pi*x/radius))
	return sinc * window
}

func (v *Voice) setFilter(cutoffHz, q float64) {
	w0 := 2 * math.Pi * cutoffHz / v.outSampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	v.fb0, v.fb1, v.fb2 = b0/a0, b1/a0, b2/a0
	v.fa1, v.fa2 = a1/a0, a2/a0
}

func (v *Voice) applyFilter(x float64) float64 {
	y := v.fb0*x + v.fb1*v.fx1 + v.fb2*v.fx2 - v.fa1*v.fy1 - v.fa2*v.fy2
	v.fx2, v.fx1 = v.fx1, x
	v.fy2, v.fy1 = v.fy1, y
	return y
}

func tcToSamples(tc float64, sampleRate float64) int {
	if tc <= -12000 {
		return 0
	}
	seconds := math.Pow(2, tc/1200)
	n := int(seconds * sampleRate)
	if n < 0 {
		return 0
	}
	return n
}

func keyScaledTC(baseTC, keynumToX float64, key int) float64 {
	return baseTC + keynumToX*float64(60-key)
}

func cbToLinear(cb float64) float64 {
	return math.Pow(10, -cb/200)
}

func lfoHz(freqTC float64) float64 {
	return 8.176 * math.Pow(2, freqTC/1200)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
