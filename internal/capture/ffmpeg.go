package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/ambilight/internal/ffmpeg"
	"github.com/smazurov/ambilight/internal/logging"
	"github.com/smazurov/ambilight/internal/process"
)

// ProcessID is the pool id of the screen grabber.
const ProcessID = "screen"

// FFmpegOptions configures an FFmpegScreen.
type FFmpegOptions struct {
	Params       ffmpeg.ScreenParams
	FrameTimeout time.Duration // per CaptureFrame wait, default 1s
	IdleTimeout  time.Duration // stop the grabber after this long without captures, default 5s
	Logger       logging.Logger
}

// FFmpegScreen grabs the screen with a long-running ffmpeg that writes raw
// BGRA frames to stdout. The grabber starts on the first CaptureFrame and
// stops when captures cease.
type FFmpegScreen struct {
	pool   process.Pool
	opts   FFmpegOptions
	logger logging.Logger

	frames chan []byte // latest frame only

	mu        sync.Mutex
	params    ffmpeg.ScreenParams
	frameSize int
	idle      *time.Timer
}

// NewFFmpegScreen registers the grabber with pool.
func NewFFmpegScreen(pool process.Pool, opts FFmpegOptions) *FFmpegScreen {
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Second
	}
	var logger logging.Logger = slog.Default()
	if opts.Logger != nil {
		logger = opts.Logger
	}

	s := &FFmpegScreen{
		pool:   pool,
		opts:   opts,
		logger: logger,
		frames: make(chan []byte, 1),
		params: opts.Params,
	}

	pool.Register(ProcessID, process.Spec{
		Command: s.command,
		Configure: func(p *process.Process) {
			s.mu.Lock()
			size := s.frameSize
			s.mu.Unlock()
			p.SetLogParser(logger, ffmpeg.ParseLogLevel)
			p.SetStdoutHandler(func(r io.Reader) error { return s.consume(r, size) })
		},
	})
	return s
}

func (s *FFmpegScreen) command() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	args, err := ffmpeg.BuildScreenArgs(&s.params)
	if err != nil {
		return nil, err
	}
	s.frameSize = FrameSize(s.params.Width, s.params.Height)
	return args, nil
}

// SetSize changes the output size, restarting a running grabber.
func (s *FFmpegScreen) SetSize(width, height int) {
	s.mu.Lock()
	changed := s.params.Width != width || s.params.Height != height
	s.params.Width, s.params.Height = width, height
	s.mu.Unlock()

	if changed && s.pool.IsRunning(ProcessID) {
		s.drain()
		if err := s.pool.Restart(ProcessID); err != nil {
			s.logger.Warn("Failed to restart screen grabber", "error", err)
		}
	}
}

// consume splits stdout into frames, keeping only the newest unread one.
func (s *FFmpegScreen) consume(r io.Reader, size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid frame size %d", size)
	}
	for {
		frame := make([]byte, size)
		if _, err := io.ReadFull(r, frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		select {
		case s.frames <- frame:
		default:
			// replace the stale frame
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- frame:
			default:
			}
		}
	}
}

func (s *FFmpegScreen) drain() {
	select {
	case <-s.frames:
	default:
	}
}

// CaptureFrame returns the next frame, starting the grabber if needed.
func (s *FFmpegScreen) CaptureFrame(ctx context.Context) ([]byte, error) {
	if err := s.ensureRunning(); err != nil {
		return nil, err
	}
	s.touch()

	timer := time.NewTimer(s.opts.FrameTimeout)
	defer timer.Stop()

	select {
	case frame := <-s.frames:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrCaptureTimeout
	}
}

func (s *FFmpegScreen) ensureRunning() error {
	info := s.pool.GetStatus(ProcessID)
	switch info.State {
	case process.StateRunning, process.StateStarting:
		return nil
	case process.StateError:
		// clear the crashed entry so the next capture starts afresh
		_ = s.pool.Stop(ProcessID)
		return fmt.Errorf("%w: %v", ErrSourceFailed, info.LastError)
	}

	s.drain()
	if err := s.pool.Start(ProcessID); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceFailed, err)
	}
	return nil
}

// touch re-arms the idle stop timer.
func (s *FFmpegScreen) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idle == nil {
		s.idle = time.AfterFunc(s.opts.IdleTimeout, s.Stop)
		return
	}
	s.idle.Reset(s.opts.IdleTimeout)
}

// Stop stops the grabber. The next CaptureFrame starts it again.
func (s *FFmpegScreen) Stop() {
	s.mu.Lock()
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	s.mu.Unlock()

	if s.pool.IsRunning(ProcessID) {
		s.logger.Debug("Stopping screen grabber")
	}
	_ = s.pool.Stop(ProcessID)
}
