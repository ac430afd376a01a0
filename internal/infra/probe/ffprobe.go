// Package probe reads container metadata from media files with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPath is the ffprobe binary looked up on PATH.
const DefaultPath = "ffprobe"

// Result is what a probe learned about a file.
type Result struct {
	Duration time.Duration
	Width    int
	Height   int
	HasVideo bool
	Format   string
}

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	path    string
	timeout time.Duration
}

// New creates an FFprobe using the given binary path.
func New(path string) *FFprobe {
	if path == "" {
		path = DefaultPath
	}
	return &FFprobe{path: path, timeout: 15 * time.Second}
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType   string `json:"codec_type"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		Duration    string `json:"duration"`
		Disposition struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
}

// Probe returns the duration and video dimensions of file.
func (p *FFprobe) Probe(ctx context.Context, file string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration,format_name:stream=codec_type,width,height,duration:stream_disposition=attached_pic",
		"-of", "json",
		file,
	}

	cmd := exec.CommandContext(ctx, p.path, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("ffprobe failed for %s: %w: %s", file, err, stderr.String())
	}

	res, err := Parse(out.Bytes())
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe output for %s: %w", file, err)
	}
	log.Debug().
		Str("file", file).
		Dur("duration", res.Duration).
		Int("width", res.Width).
		Int("height", res.Height).
		Msg("Probed media file")
	return res, nil
}

// Parse decodes ffprobe JSON output. Cover art streams are not counted as video.
func Parse(data []byte) (Result, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(data, &probeData); err != nil {
		return Result{}, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	res := Result{Format: probeData.Format.FormatName}
	res.Duration = parseSeconds(probeData.Format.Duration)

	for _, s := range probeData.Streams {
		if s.CodecType != "video" || s.Disposition.AttachedPic == 1 {
			continue
		}
		res.HasVideo = true
		if s.Width*s.Height > res.Width*res.Height {
			res.Width = s.Width
			res.Height = s.Height
		}
		if res.Duration == 0 {
			res.Duration = parseSeconds(s.Duration)
		}
	}
	return res, nil
}

func parseSeconds(s string) time.Duration {
	if s == "" || s == "N/A" {
		return 0
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
