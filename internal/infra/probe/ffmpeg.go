package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// DefaultFFmpegPath is the ffmpeg binary looked up on PATH.
const DefaultFFmpegPath = "ffmpeg"

// FFmpeg extracts still images with the ffmpeg binary.
type FFmpeg struct {
	path    string
	timeout time.Duration
}

// NewFFmpeg creates an FFmpeg using the given binary path.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = DefaultFFmpegPath
	}
	return &FFmpeg{path: path, timeout: 20 * time.Second}
}

// ExtractFrame returns one PNG-encoded frame at offset seconds.
func (f *FFmpeg) ExtractFrame(ctx context.Context, file string, offset float64) ([]byte, error) {
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", file,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1",
	}
	return f.run(ctx, file, args)
}

// ExtractCover returns the attached picture of an audio file as PNG.
func (f *FFmpeg) ExtractCover(ctx context.Context, file string) ([]byte, error) {
	args := []string{
		"-v", "error",
		"-i", file,
		"-map", "0:v:0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1",
	}
	return f.run(ctx, file, args)
}

func (f *FFmpeg) run(ctx context.Context, file string, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.path, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed for %s: %w: %s", file, err, stderr.String())
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no image for %s", file)
	}
	return out.Bytes(), nil
}
