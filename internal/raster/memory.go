package raster

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// MemoryImage is an image whose bands are already loaded.
type MemoryImage struct {
	ImageID  string
	Acquired string
	Bands    map[string]Band
}

func (m *MemoryImage) ID() string {
	return m.ImageID
}

func (m *MemoryImage) Timestamp() (time.Time, error) {
	return ParseTimestamp(m.Acquired)
}

func (m *MemoryImage) Band(_ context.Context, name string) (Band, error) {
	b, ok := m.Bands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in image %s", ErrBandNotFound, name, m.ImageID)
	}
	return b, nil
}

// Memory is a collection over a fixed slice of images.
type Memory struct {
	CollectionName string
	Items          []Image
}

func (m *Memory) Name() string {
	return m.CollectionName
}

func (m *Memory) Images(ctx context.Context) iter.Seq2[Image, error] {
	return func(yield func(Image, error) bool) {
		for _, img := range m.Items {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(img, nil) {
				return
			}
		}
	}
}
