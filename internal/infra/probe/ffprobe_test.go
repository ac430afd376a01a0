package probe_test

import (
	"context"
	"testing"
	"time"

	"github.com/edumarques81/streamly-backend/internal/infra/probe"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		duration time.Duration
		width    int
		height   int
		hasVideo bool
	}{
		{
			name:     "video file",
			input:    `{"format":{"format_name":"mov,mp4","duration":"95.500000"},"streams":[{"codec_type":"video","width":1920,"height":1080},{"codec_type":"audio"}]}`,
			duration: 95500 * time.Millisecond,
			width:    1920,
			height:   1080,
			hasVideo: true,
		},
		{
			name:     "audio with cover art",
			input:    `{"format":{"format_name":"mp3","duration":"180.0"},"streams":[{"codec_type":"audio"},{"codec_type":"video","width":500,"height":500,"disposition":{"attached_pic":1}}]}`,
			duration: 180 * time.Second,
		},
		{
			name:     "duration from stream",
			input:    `{"format":{"format_name":"matroska","duration":"N/A"},"streams":[{"codec_type":"video","width":640,"height":480,"duration":"12.25"}]}`,
			duration: 12250 * time.Millisecond,
			width:    640,
			height:   480,
			hasVideo: true,
		},
		{
			name:     "largest video stream wins",
			input:    `{"format":{"duration":"1"},"streams":[{"codec_type":"video","width":320,"height":240},{"codec_type":"video","width":3840,"height":2160}]}`,
			duration: time.Second,
			width:    3840,
			height:   2160,
			hasVideo: true,
		},
		{
			name:  "no streams",
			input: `{"format":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := probe.Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if res.Duration != tt.duration {
				t.Errorf("Duration = %v, want %v", res.Duration, tt.duration)
			}
			if res.Width != tt.width || res.Height != tt.height {
				t.Errorf("Size = %dx%d, want %dx%d", res.Width, res.Height, tt.width, tt.height)
			}
			if res.HasVideo != tt.hasVideo {
				t.Errorf("HasVideo = %v, want %v", res.HasVideo, tt.hasVideo)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := probe.Parse([]byte("not json")); err == nil {
		t.Error("Expected an error for invalid JSON")
	}
}

func TestProbeMissingBinary(t *testing.T) {
	p := probe.New("/nonexistent/ffprobe")
	if _, err := p.Probe(context.Background(), "/tmp/nothing.mp4"); err == nil {
		t.Error("Expected an error when ffprobe is missing")
	}
}
