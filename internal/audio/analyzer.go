// Package audio measures the bass of what the machine is playing. An ffmpeg
// tap writes interleaved s16le stereo PCM to stdout; every hop the analyzer
// runs an FFT over the latest window and publishes a level per channel.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/smazurov/ambilight/internal/ffmpeg"
	"github.com/smazurov/ambilight/internal/logging"
	"github.com/smazurov/ambilight/internal/metrics"
	"github.com/smazurov/ambilight/internal/process"
)

// ProcessID is the pool id of the audio tap.
const ProcessID = "audio"

// Analysis parameters.
const (
	SampleRate = 44100
	Channels   = 2
	hopSize    = WindowSize / 2
)

// Options configures an Analyzer.
type Options struct {
	Params ffmpeg.AudioParams
	Logger logging.Logger
}

// Analyzer tracks the bass level of each stereo channel.
type Analyzer struct {
	pool   process.Pool
	logger logging.Logger

	// toggle serializes Enable and Disable so the tap state follows the
	// last call. It is held across pool calls; mu is not.
	toggle sync.Mutex

	mu      sync.Mutex
	enabled bool
	valid   bool
	left    uint8
	right   uint8
}

// NewAnalyzer registers the audio tap with pool. The tap runs only while
// the analyzer is enabled.
func NewAnalyzer(pool process.Pool, opts Options) *Analyzer {
	var logger logging.Logger = slog.Default()
	if opts.Logger != nil {
		logger = opts.Logger
	}
	a := &Analyzer{pool: pool, logger: logger}

	params := opts.Params
	params.SampleRate = SampleRate
	params.Channels = Channels
	pool.Register(ProcessID, process.Spec{
		Command: func() ([]string, error) { return ffmpeg.BuildAudioArgs(&params) },
		Configure: func(p *process.Process) {
			p.SetLogParser(logger, ffmpeg.ParseLogLevel)
			p.SetStdoutHandler(a.Consume)
		},
	})
	return a
}

// Enable starts the audio tap. Enabling twice is a no-op.
func (a *Analyzer) Enable() {
	a.toggle.Lock()
	defer a.toggle.Unlock()

	a.mu.Lock()
	if a.enabled {
		a.mu.Unlock()
		return
	}
	a.enabled = true
	a.mu.Unlock()

	if err := a.pool.Start(ProcessID); err != nil {
		a.logger.Warn("Failed to start audio tap", "error", err)
	}
}

// Disable stops the tap and forgets the last levels.
func (a *Analyzer) Disable() {
	a.toggle.Lock()
	defer a.toggle.Unlock()

	a.mu.Lock()
	wasEnabled := a.enabled
	a.enabled = false
	a.valid = false
	a.mu.Unlock()

	if wasEnabled {
		_ = a.pool.Stop(ProcessID)
	}
}

// Levels returns the latest per-channel levels. ok is false while disabled
// or before the first window has been analyzed.
func (a *Analyzer) Levels() (left, right uint8, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled || !a.valid {
		return 0, 0, false
	}
	return a.left, a.right, true
}

// Consume analyzes PCM from r until it ends.
func (a *Analyzer) Consume(r io.Reader) error {
	meter := newBassMeter()
	mono := make([]float64, WindowSize)
	raw := make([]byte, hopSize*Channels*2)
	filled := 0

	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read pcm: %w", err)
		}

		// slide the window by one hop
		copy(mono, mono[hopSize:])
		var peakL, peakR float64
		for i := 0; i < hopSize; i++ {
			l := float64(int16(binary.LittleEndian.Uint16(raw[i*4:]))) / 32768
			r := float64(int16(binary.LittleEndian.Uint16(raw[i*4+2:]))) / 32768
			mono[WindowSize-hopSize+i] = (l + r) / 2
			peakL = math.Max(peakL, math.Abs(l))
			peakR = math.Max(peakR, math.Abs(r))
		}
		if filled < WindowSize {
			filled += hopSize
			if filled < WindowSize {
				continue
			}
		}

		avg := meter.average(mono)
		// channel peaks on the 0..127 scale of a 16-bit level over 65535
		left := channelLevel(avg, peakL*32768/65535*255)
		right := channelLevel(avg, peakR*32768/65535*255)
		a.store(left, right)
	}
}

func (a *Analyzer) store(left, right uint8) {
	a.mu.Lock()
	enabled := a.enabled
	if enabled {
		a.left, a.right, a.valid = left, right, true
	}
	a.mu.Unlock()
	if enabled {
		metrics.SetAudioLevels(left, right)
	}
}
