// Command sf2play loads an SF2 SoundFont and plays a short hardcoded note
// progression through it, either live or rendered to a WAV file.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/oxisynth-go/sf2synth"
	"github.com/oxisynth-go/sf2synth/internal/audio"
	"github.com/oxisynth-go/sf2synth/internal/settings"
	"github.com/oxisynth-go/sf2synth/internal/xlog"
)

var log = xlog.For("sf2play")

// note is one step of the hardcoded demo progression.
type note struct {
	channel, key, velocity uint8
	holdMS, gapMS          int
}

var progression = []note{
	{0, 60, 100, 400, 50},  // C4
	{0, 64, 100, 400, 50},  // E4
	{0, 67, 100, 400, 50},  // G4
	{0, 72, 100, 800, 200}, // C5
}

func main() {
	var (
		sampleRate = pflag.IntP("sample-rate", "r", 44100, "output sample rate")
		polyphony  = pflag.Int("polyphony", 256, "voice pool capacity")
		gain       = pflag.Float64P("gain", "g", 0.4, "master output gain, 0.0-10.0")
		program    = pflag.IntP("program", "p", 0, "GM program number to select before playing")
		bank       = pflag.Int("bank", 0, "bank number to select before playing")
		outPath    = pflag.StringP("out", "o", "", "render offline to a WAV file instead of live playback")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
		help       = pflag.BoolP("help", "h", false, "show usage")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: sf2play [flags] <soundfont.sf2>\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || pflag.NArg() != 1 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if *verbose {
		xlog.SetLevel(log.GetLevel() - 1)
	}

	cfg := settings.Default()
	cfg.SampleRate = *sampleRate
	cfg.Polyphony = *polyphony
	cfg.Gain = *gain

	synth := sf2synth.New(cfg)
	if _, err := synth.SFLoad(pflag.Arg(0)); err != nil {
		log.Fatal("failed to load soundfont", "err", err)
	}

	synth.BankSelect(0, *bank)
	synth.ProgramChange(0, *program)

	if *outPath != "" {
		renderOffline(synth, *outPath, cfg.SampleRate)
		return
	}
	playLive(synth, cfg.SampleRate)
}

// timelineEvent is a note-on or note-off scheduled at an absolute sample
// frame offset, used to drive both offline and live playback from the
// same hardcoded progression without a second goroutine touching the
// synth concurrently (spec.md §5: single-threaded cooperative access).
type timelineEvent struct {
	frame                  int
	channel, key, velocity uint8
	isOn                   bool
}

func buildTimeline(sampleRate int) ([]timelineEvent, int) {
	var events []timelineEvent
	frame := 0
	for _, n := range progression {
		events = append(events, timelineEvent{frame: frame, channel: n.channel, key: n.key, velocity: n.velocity, isOn: true})
		frame += n.holdMS * sampleRate / 1000
		events = append(events, timelineEvent{frame: frame, channel: n.channel, key: n.key, isOn: false})
		frame += n.gapMS * sampleRate / 1000
	}
	frame += sampleRate // release tail
	return events, frame
}

func renderOffline(synth *sf2synth.Synth, path string, sampleRate int) {
	events, totalFrames := buildTimeline(sampleRate)
	buf := make([]float32, totalFrames*2)

	cursor := 0
	for _, ev := range events {
		if ev.frame > cursor {
			synth.Process(buf[cursor*2 : ev.frame*2])
			cursor = ev.frame
		}
		applyEvent(synth, ev)
	}
	if cursor < totalFrames {
		synth.Process(buf[cursor*2 : totalFrames*2])
	}

	wav := audio.EncodeWAVFloat32LE(buf, sampleRate, 2)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		log.Fatal("failed to write wav", "path", path, "err", err)
	}
	log.Info("rendered", "path", path, "frames", totalFrames)
}

// queuedEvent is a note-on/note-off posted from the main goroutine and
// applied on the audio callback goroutine, the only goroutine allowed to
// touch the synth (spec.md §5: single-threaded cooperative access). This
// mirrors the offline path's timelineEvent, just delivered through a
// channel instead of a precomputed schedule.
type queuedEvent struct {
	channel, key, velocity uint8
	isOn                   bool
}

// queuedSynth adapts a *sf2synth.Synth into an audio.SampleSource that
// drains queued MIDI events immediately before each render block, so
// NoteOn/NoteOff calls issued from any other goroutine never race with
// Process.
type queuedSynth struct {
	synth  *sf2synth.Synth
	events chan queuedEvent
}

func newQueuedSynth(synth *sf2synth.Synth) *queuedSynth {
	return &queuedSynth{synth: synth, events: make(chan queuedEvent, 64)}
}

func (q *queuedSynth) NoteOn(ch int, key, velocity uint8) {
	q.events <- queuedEvent{channel: uint8(ch), key: key, velocity: velocity, isOn: true}
}

func (q *queuedSynth) NoteOff(ch int, key uint8) {
	q.events <- queuedEvent{channel: uint8(ch), key: key, isOn: false}
}

func (q *queuedSynth) Process(dst []float32) {
	for {
		select {
		case ev := <-q.events:
			if ev.isOn {
				q.synth.NoteOn(int(ev.channel), ev.key, ev.velocity)
			} else {
				q.synth.NoteOff(int(ev.channel), ev.key)
			}
		default:
			q.synth.Process(dst)
			return
		}
	}
}

func playLive(synth *sf2synth.Synth, sampleRate int) {
	q := newQueuedSynth(synth)
	player, err := audio.NewPlayer(sampleRate, q)
	if err != nil {
		log.Fatal("failed to start audio player", "err", err)
	}
	player.Play()

	for _, n := range progression {
		q.NoteOn(int(n.channel), n.key, n.velocity)
		time.Sleep(time.Duration(n.holdMS) * time.Millisecond)
		q.NoteOff(int(n.channel), n.key)
		time.Sleep(time.Duration(n.gapMS) * time.Millisecond)
	}
	time.Sleep(time.Second) // let the release tail finish
	player.Stop()
}

func applyEvent(synth *sf2synth.Synth, ev timelineEvent) {
	if ev.isOn {
		synth.NoteOn(int(ev.channel), ev.key, ev.velocity)
	} else {
		synth.NoteOff(int(ev.channel), ev.key)
	}
}
