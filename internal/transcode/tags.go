package transcode

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// Tags are the fields read back from a written file.
type Tags struct {
	Title  string
	Artist string
	Format string // e.g. "ID3v2.4"
}

// ReadTags reads the metadata tags of the file at path.
func ReadTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	return &Tags{
		Title:  m.Title(),
		Artist: m.Artist(),
		Format: string(m.Format()),
	}, nil
}
