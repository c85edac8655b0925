// Package process runs the helper subprocesses (ffmpeg screen grabs and
// audio taps) the renderer reads from.
//
// Process wraps os/exec for a single subprocess:
//   - stop with SIGINT, then SIGKILL once a grace period expires
//   - stdout handed to a stream consumer (raw frames, PCM) or logged
//   - stderr logged line by line through a pluggable level parser
//
// Pool supervises named processes registered with a Spec:
//
//   - Start/Stop/Restart by ID and state tracking
//
//   - optional automatic restart after a crash
//
//   - StopAll for shutdown
//
//     pool := process.NewPool(&process.PoolOptions{RestartDelay: 2 * time.Second})
//     pool.Register("audio", process.Spec{
//     Command:   func() ([]string, error) { return args, nil },
//     Configure: func(p *process.Process) { p.SetStdoutHandler(analyzer.Consume) },
//     })
//     pool.Start("audio")
//     defer pool.StopAll()
package process
