package artwork

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ArtworkFilenames defines common artwork filenames in priority order.
var ArtworkFilenames = []string{
	"cover",
	"folder",
	"poster",
	"front",
	"album",
}

// ArtworkExtensions defines supported image extensions.
var ArtworkExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".webp",
}

// FolderFinder looks for a folder image next to a media file.
type FolderFinder struct {
	roots     []string
	maxLevels int
}

// NewFolderFinder creates a finder that never leaves roots.
func NewFolderFinder(roots []string) *FolderFinder {
	return &FolderFinder{
		roots:     roots,
		maxLevels: 1,
	}
}

// FindArtwork returns the path of an image for the media file at path, or ""
// if there is none. A file named like the media file (movie.jpg for
// movie.mp4) wins over folder-wide names.
func (f *FolderFinder) FindArtwork(path string) string {
	if path == "" {
		return ""
	}

	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, ext := range ArtworkExtensions {
		candidate := filepath.Join(dir, stem+ext)
		if fileExists(candidate) {
			return candidate
		}
	}

	root := f.rootOf(path)
	if root == "" {
		return ""
	}

	currentDir := dir
	for level := 0; level <= f.maxLevels; level++ {
		if !within(currentDir, root) {
			break
		}
		if artPath := f.searchDirectory(currentDir); artPath != "" {
			log.Debug().
				Str("artPath", artPath).
				Int("level", level).
				Msg("Found folder artwork")
			return artPath
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}
	return ""
}

// searchDirectory checks a single directory for the known artwork names.
func (f *FolderFinder) searchDirectory(dir string) string {
	for _, name := range ArtworkFilenames {
		for _, ext := range ArtworkExtensions {
			variants := []string{
				name + ext,
				strings.ToUpper(name[:1]) + name[1:] + ext,
				strings.ToUpper(name) + strings.ToUpper(ext),
			}
			for _, v := range variants {
				p := filepath.Join(dir, v)
				if fileExists(p) {
					return p
				}
			}
		}
	}
	return ""
}

func (f *FolderFinder) rootOf(path string) string {
	for _, root := range f.roots {
		if within(path, root) {
			return root
		}
	}
	return ""
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
