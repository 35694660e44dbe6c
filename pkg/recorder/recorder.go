// Package recorder pipes rendered frames into ffmpeg so a session can be
// saved to a file or pushed to an RTMP endpoint.
package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sudorandom/mandala-map/pkg/logging"
)

type Options struct {
	Width, Height int
	FPS           int
	// Output is a file path or rtmp(s):// URL.
	Output     string
	Bitrate    string
	MaxBitrate string
}

// Args builds the ffmpeg command line for raw RGBA frames on stdin.
func Args(o Options) []string {
	if o.Bitrate == "" {
		o.Bitrate = "9000k"
	}
	if o.MaxBitrate == "" {
		o.MaxBitrate = "15000k"
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	args := []string{
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo", "-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-framerate", fmt.Sprint(o.FPS),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", o.Bitrate,
		"-maxrate", o.MaxBitrate,
		"-bufsize", "30000k",
		"-g", fmt.Sprint(o.FPS * 2),
		"-pix_fmt", "yuv420p",
	}
	if strings.HasPrefix(o.Output, "rtmp://") || strings.HasPrefix(o.Output, "rtmps://") || strings.HasSuffix(o.Output, ".flv") {
		args = append(args, "-f", "flv")
	}
	return append(args, o.Output)
}

// Recorder buffers frames and writes them to ffmpeg from its own goroutine.
// Frames are dropped rather than stalling the render loop when the encoder
// falls behind.
type Recorder struct {
	w       io.WriteCloser
	frames  chan []byte
	pool    sync.Pool
	logger  logging.Logger
	dropped atomic.Int64
	written atomic.Int64
	done    chan struct{}
	wait    func() error
	once    sync.Once
	err     error
}

// Start launches ffmpeg. It is stopped by Close or when ctx is cancelled.
func Start(ctx context.Context, o Options, logger logging.Logger) (*Recorder, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", Args(o)...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	logger.Info("recording started", logging.String("output", o.Output))
	return newRecorder(stdin, o.Width*o.Height*4, logger, cmd.Wait), nil
}

func newRecorder(w io.WriteCloser, frameSize int, logger logging.Logger, wait func() error) *Recorder {
	r := &Recorder{
		w:      w,
		frames: make(chan []byte, 2),
		logger: logger,
		done:   make(chan struct{}),
		wait:   wait,
	}
	r.pool.New = func() any { return make([]byte, frameSize) }
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	failed := false
	for buf := range r.frames {
		if !failed {
			if _, err := r.w.Write(buf); err != nil {
				r.logger.Error("recording write failed", logging.Err(err))
				failed = true
			} else {
				r.written.Add(1)
			}
		}
		r.pool.Put(buf)
	}
}

// Frame copies img and queues it for encoding. Call from Draw.
func (r *Recorder) Frame(img *ebiten.Image) {
	buf := r.pool.Get().([]byte)
	img.ReadPixels(buf)
	r.submit(buf)
}

func (r *Recorder) submit(buf []byte) {
	select {
	case r.frames <- buf:
	default:
		r.dropped.Add(1)
		r.pool.Put(buf)
	}
}

func (r *Recorder) Dropped() int64 { return r.dropped.Load() }
func (r *Recorder) Written() int64 { return r.written.Load() }

// Close flushes queued frames, closes ffmpeg's stdin and waits for it to
// exit.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		close(r.frames)
		<-r.done
		r.err = r.w.Close()
		if r.wait != nil {
			if err := r.wait(); err != nil && r.err == nil {
				r.err = err
			}
		}
		r.logger.Info("recording stopped",
			logging.Int("frames", int(r.written.Load())),
			logging.Int("dropped", int(r.dropped.Load())),
		)
	})
	return r.err
}
