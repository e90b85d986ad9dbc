// Command granulate renders or plays granular textures sliced from an
// audio sample.
//
// A source file is chopped into short enveloped grains that fire on a
// 16-step pattern, scatter across the stereo field, and pass through a
// per-grain filter, pan and gain chain. The mixed texture is either
// written to a WAV file or played live through the default audio
// device.
//
// Usage:
//
//	granulate -in voice.wav -out texture.wav -dur 10
//	granulate -in voice.wav -play -tempo 90 -pattern "x.x...x.x.x...x."
//	granulate -config session.json -play -watch
//
// A session JSON file configures tempo, master volume and one sample,
// pattern and parameter set per lane; with -watch it is reloaded on
// every change while playing.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/algo-granular/analysis"
	"github.com/cwbudde/algo-granular/grain"
	"github.com/cwbudde/algo-granular/graph"
	"github.com/cwbudde/algo-granular/playback"
	"github.com/cwbudde/algo-granular/sample"
	"github.com/cwbudde/algo-granular/sequencer"
)

const (
	renderBlockFrames = 512
	liveTickInterval  = 10 * time.Millisecond
	liveLookahead     = 0.05
)

func main() {
	in := flag.String("in", "", "sample file (WAV or MP3) loaded into lane 0")
	configPath := flag.String("config", "", "session JSON file; overrides -in, -tempo, -volume and -pattern")
	out := flag.String("out", "granulate.wav", "output WAV file for offline rendering")
	dur := flag.Float64("dur", 8, "duration in seconds; 0 with -play runs until interrupted")
	play := flag.Bool("play", false, "play live instead of rendering to -out")
	watch := flag.Bool("watch", false, "reload -config on change while playing")
	rate := flag.Float64("rate", 44100, "engine sample rate in Hz")
	tempo := flag.Float64("tempo", 120, "pattern tempo in BPM")
	seed := flag.Int64("seed", 1, "grain scattering seed")
	voices := flag.Int("voices", 64, "maximum simultaneous grain voices")
	volume := flag.Float64("volume", 0.8, "master volume in [0, 1]")
	pattern := flag.String("pattern", "", "16 steps for lane 0, e.g. \"x...x...x...x...\"; empty arms all")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: granulate [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Chops a sample into enveloped grains on a 16-step pattern and\n")
		fmt.Fprintf(os.Stderr, "renders the texture to a WAV file or plays it live.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  granulate -in voice.wav -out texture.wav -dur 10\n")
		fmt.Fprintf(os.Stderr, "  granulate -in voice.wav -play -tempo 90 -pattern \"x.x...x.x.x...x.\"\n")
		fmt.Fprintf(os.Stderr, "  granulate -config session.json -play -watch\n")
	}
	flag.Parse()

	if *in == "" && *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	engine, err := graph.NewEngine(graph.WithSampleRate(*rate))
	if err != nil {
		die("engine: %v", err)
	}

	manager, err := grain.NewManager(engine, grain.WithMaxVoices(*voices))
	if err != nil {
		die("voice manager: %v", err)
	}

	seq, err := sequencer.NewSequencer(manager,
		sequencer.WithTempo(*tempo),
		sequencer.WithSeed(*seed),
	)
	if err != nil {
		die("sequencer: %v", err)
	}

	if err := engine.SetMasterVolume(*volume); err != nil {
		die("volume: %v", err)
	}

	samples := newSampleCache()

	if *configPath != "" {
		cfg, err := loadSession(*configPath)
		if err != nil {
			die("config: %v", err)
		}
		if err := applySession(seq, engine, samples, cfg); err != nil {
			die("config: %v", err)
		}
	} else if err := loadFlagSlot(seq, samples, *in, *pattern); err != nil {
		die("%v", err)
	}

	if *play {
		if err := playLive(engine, seq, manager, samples, *configPath, *watch, *dur); err != nil {
			die("play: %v", err)
		}
		return
	}

	if *dur <= 0 {
		die("offline rendering needs -dur > 0")
	}

	if err := renderOffline(engine, seq, manager, *out, *dur); err != nil {
		die("render: %v", err)
	}
}

// loadFlagSlot fills lane 0 from the -in and -pattern flags with
// default grain parameters.
func loadFlagSlot(seq *sequencer.Sequencer, samples *sampleCache, path, pattern string) error {
	buf, err := samples.load(path)
	if err != nil {
		return err
	}

	steps, err := parsePattern(pattern)
	if err != nil {
		return err
	}

	return seq.SetSlot(0, sequencer.Slot{
		Buffer:  buf,
		Params:  grain.DefaultParams(),
		Pattern: steps,
	})
}

// renderOffline runs the sequencer clock one block ahead of the render
// position so every grain onset lands sample-accurately, then writes
// the stereo result and prints a level summary.
func renderOffline(e *graph.Engine, seq *sequencer.Sequencer, m *grain.Manager, path string, dur float64) error {
	rate := e.SampleRate()
	total := int(math.Round(dur * rate))
	if total < 1 {
		total = 1
	}

	left := make([]float64, total)
	right := make([]float64, total)
	blockDur := renderBlockFrames / rate

	seq.Start(e.Now())

	for done := 0; done < total; {
		n := min(renderBlockFrames, total-done)
		seq.Advance(e.Now() + blockDur)
		if err := e.RenderStereo(left[done:done+n], right[done:done+n]); err != nil {
			return err
		}
		done += n
	}

	seq.Stop()
	m.StopAll()

	if err := sample.WriteWAV(path, left, right, rate); err != nil {
		return err
	}

	fmt.Printf("rendered %.1f s to %s\n", dur, path)
	printSummary(left, right, rate, m)

	return nil
}

func printSummary(left, right []float64, rate float64, m *grain.Manager) {
	channels := []struct {
		name string
		data []float64
	}{
		{"left", left},
		{"right", right},
	}

	for _, ch := range channels {
		met, err := analysis.Analyze(ch.data, rate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "analysis (%s): %v\n", ch.name, err)
			continue
		}

		fmt.Printf("%-5s  peak %.3f  rms %.3f  crest %.1f dB  dc %+.4f  centroid %.0f Hz\n",
			ch.name, met.Peak, met.RMS, met.CrestDB, met.DCOffset, met.Centroid)
	}

	fmt.Printf("grains: %d created, %d dropped, %d evicted\n",
		m.CreatedCount(), m.DroppedCount(), m.EvictedCount())
}

// playLive streams the engine through the default audio device. The
// sequencer clock runs slightly ahead of the stream so grains are
// scheduled before the renderer reaches them. Session reloads and
// watcher errors arrive on channels and are handled between ticks.
func playLive(e *graph.Engine, seq *sequencer.Sequencer, m *grain.Manager, samples *sampleCache, configPath string, watch bool, dur float64) error {
	out, err := playback.NewOto(e)
	if err != nil {
		return err
	}
	defer out.Close()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	sessions := make(chan *sessionConfig, 1)
	errs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	if watch && configPath != "" {
		if err := watchSession(configPath, sessions, errs, done); err != nil {
			return err
		}
	}

	seq.Start(e.Now())
	if err := out.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(liveTickInterval)
	defer ticker.Stop()

	fmt.Println("playing; press Ctrl-C to stop")

	for {
		select {
		case <-ticker.C:
			now := e.Now()
			seq.Advance(now + liveLookahead)
			if dur > 0 && now >= dur {
				seq.Stop()
				m.StopAll()
				return out.Stop()
			}
		case cfg := <-sessions:
			if err := applySession(seq, e, samples, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "reload: %v\n", err)
				continue
			}
			fmt.Println("session reloaded")
		case err := <-errs:
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		case <-signals:
			fmt.Println("\nstopping")
			seq.Stop()
			m.StopAll()
			return out.Stop()
		}
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
