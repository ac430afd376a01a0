package artwork

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// maxFrameOffset caps how far into a video the thumbnail frame is taken.
const maxFrameOffset = 10.0

// Resolver finds a thumbnail for an item. Resolution order:
// 1. Generated thumbnail on disk
// 2. Image file next to the item (movie.jpg, cover.jpg, folder.jpg, ...)
// 3. Embedded cover (audio) or an extracted frame (video)
type Resolver struct {
	finder    *FolderFinder
	extractor FrameExtractor
	gen       *ThumbnailGenerator
	locks     sync.Map
}

// NewResolver creates a resolver. extractor may be nil to disable ffmpeg.
func NewResolver(finder *FolderFinder, extractor FrameExtractor, gen *ThumbnailGenerator) *Resolver {
	return &Resolver{
		finder:    finder,
		extractor: extractor,
		gen:       gen,
	}
}

// Resolve returns the path of a JPEG thumbnail for item at size.
func (r *Resolver) Resolve(ctx context.Context, item media.Item, size ThumbnailSize) (string, error) {
	if p, ok := r.gen.Cached(item.ID, size); ok {
		return p, nil
	}

	// One generation per item at a time.
	mu, _ := r.locks.LoadOrStore(item.ID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	if p, ok := r.gen.Cached(item.ID, size); ok {
		return p, nil
	}

	if r.finder != nil {
		if src := r.finder.FindArtwork(item.Path); src != "" {
			p, err := r.gen.GenerateThumbnail(src, item.ID, size)
			if err == nil {
				return p, nil
			}
			log.Debug().Err(err).Str("source", src).Msg("Folder artwork unusable")
		}
	}

	if r.extractor == nil {
		return "", ErrNoArtwork
	}

	start := time.Now()
	var data []byte
	var err error
	if item.Kind == media.KindAudio {
		data, err = r.extractor.ExtractCover(ctx, item.Path)
	} else {
		data, err = r.extractor.ExtractFrame(ctx, item.Path, frameOffset(item.Duration))
	}
	if err != nil {
		log.Debug().Err(err).Str("id", item.ID).Msg("No embedded artwork")
		return "", ErrNoArtwork
	}

	p, err := r.gen.GenerateFromBytes(data, item.ID, size)
	if err != nil {
		return "", err
	}
	log.Debug().
		Str("id", item.ID).
		Int("size", int(size)).
		Dur("took", time.Since(start)).
		Msg("Thumbnail extracted")
	return p, nil
}

// Forget drops the stored thumbnails of an item.
func (r *Resolver) Forget(id string) {
	r.gen.CleanupThumbnails(id)
	r.locks.Delete(id)
}

// frameOffset picks a frame a tenth of the way in, at most maxFrameOffset seconds.
func frameOffset(d time.Duration) float64 {
	offset := d.Seconds() / 10
	if offset > maxFrameOffset {
		offset = maxFrameOffset
	}
	return offset
}
