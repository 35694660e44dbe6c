package engine

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sudorandom/mandala-map/pkg/logging"
)

func (e *Engine) captureFrame(img *ebiten.Image, suffix string, timestamp time.Time) {
	if e.FrameCaptureDir == "" {
		e.logger.Warn("frame capture requested but no capture directory is set")
		return
	}
	rgba := image.NewRGBA(img.Bounds())
	img.ReadPixels(rgba.Pix)

	// encode off the game goroutine
	go func() {
		path, err := writePNG(e.FrameCaptureDir, suffix, timestamp, rgba)
		if err != nil {
			e.logger.Error("frame capture failed", logging.Err(err))
			return
		}
		e.logger.Info("captured frame", logging.String("path", path))
	}()
}

func captureName(suffix string, timestamp time.Time) string {
	return fmt.Sprintf("mandala-%s-%s.png", timestamp.Format("20060102-150405.000"), suffix)
}

func writePNG(dir, suffix string, timestamp time.Time, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture directory: %w", err)
	}
	path := filepath.Join(dir, captureName(suffix, timestamp))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
