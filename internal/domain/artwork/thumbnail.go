package artwork

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	_ "image/png" // PNG decoder
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
)

// ThumbnailGenerator scales source images into cached JPEG thumbnails.
type ThumbnailGenerator struct {
	cacheDir string
}

// NewThumbnailGenerator creates a generator writing below cacheDir/thumbs.
func NewThumbnailGenerator(cacheDir string) *ThumbnailGenerator {
	return &ThumbnailGenerator{
		cacheDir: cacheDir,
	}
}

// Path returns where the thumbnail for id at size is stored.
func (g *ThumbnailGenerator) Path(id string, size ThumbnailSize) string {
	return filepath.Join(g.cacheDir, "thumbs", fmt.Sprintf("%s_%d.jpg", id, size))
}

// Cached returns the stored thumbnail path if it exists.
func (g *ThumbnailGenerator) Cached(id string, size ThumbnailSize) (string, bool) {
	p := g.Path(id, size)
	if fileExists(p) {
		return p, true
	}
	return "", false
}

// GenerateThumbnail scales the image file at sourcePath.
func (g *ThumbnailGenerator) GenerateThumbnail(sourcePath, id string, size ThumbnailSize) (string, error) {
	if p, ok := g.Cached(id, size); ok {
		return p, nil
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source image: %w", err)
	}
	defer src.Close()
	return g.generate(src, sourcePath, id, size)
}

// GenerateFromBytes scales an encoded image held in memory.
func (g *ThumbnailGenerator) GenerateFromBytes(data []byte, id string, size ThumbnailSize) (string, error) {
	if p, ok := g.Cached(id, size); ok {
		return p, nil
	}
	return g.generate(bytes.NewReader(data), "memory", id, size)
}

func (g *ThumbnailGenerator) generate(r io.Reader, source, id string, size ThumbnailSize) (string, error) {
	thumbPath := g.Path(id, size)
	if err := os.MkdirAll(filepath.Dir(thumbPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	img, format, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	log.Debug().
		Str("source", source).
		Str("format", format).
		Int("size", int(size)).
		Msg("Generating thumbnail")

	thumb := resize(img, int(size))

	// Write to a temp file so readers never see a partial JPEG.
	tmp, err := os.CreateTemp(filepath.Dir(thumbPath), ".thumb-*")
	if err != nil {
		return "", fmt.Errorf("failed to create thumbnail file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, thumb, &jpeg.Options{Quality: 85}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), thumbPath); err != nil {
		return "", fmt.Errorf("failed to store thumbnail: %w", err)
	}
	return thumbPath, nil
}

// resize scales an image to fit within maxSize while keeping the aspect
// ratio. Images already smaller are not upscaled.
func resize(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	if srcW <= maxSize && srcH <= maxSize {
		return src
	}

	var newW, newH int
	if srcW > srcH {
		newW = maxSize
		newH = int(float64(srcH) * float64(maxSize) / float64(srcW))
	} else {
		newH = maxSize
		newW = int(float64(srcW) * float64(maxSize) / float64(srcH))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// CleanupThumbnails removes every size stored for id.
func (g *ThumbnailGenerator) CleanupThumbnails(id string) {
	for _, size := range Sizes {
		thumbPath := g.Path(id, size)
		if err := os.Remove(thumbPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", thumbPath).Msg("Failed to remove thumbnail")
		}
	}
}
