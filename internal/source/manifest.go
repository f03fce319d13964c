// Package source supplies raster collections described by a YAML manifest
// whose band files live in a local directory or behind HTTP or FTP.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v2"

	"github.com/lox/basinseries/internal/raster"
)

var ErrInvalidManifest = errors.New("invalid collection manifest")

// Manifest describes one collection. Every image shares the grid placement
// and value encoding.
type Manifest struct {
	Name        string          `yaml:"name"`
	OriginX     float64         `yaml:"origin_x"`
	OriginY     float64         `yaml:"origin_y"`
	PixelSize   float64         `yaml:"pixel_size"`
	ScaleFactor float64         `yaml:"scale_factor"`
	Offset      float64         `yaml:"offset"`
	NoData      *float64        `yaml:"nodata"`
	Images      []ImageEntry `yaml:"images"`
}

type ImageEntry struct {
	ID    string            `yaml:"id"`
	Time  string            `yaml:"time"`
	Bands map[string]string `yaml:"bands"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidManifest)
	}
	if m.PixelSize <= 0 {
		return fmt.Errorf("%w: %s: pixel_size must be positive", ErrInvalidManifest, m.Name)
	}
	seen := make(map[string]bool, len(m.Images))
	for i, img := range m.Images {
		if img.ID == "" {
			return fmt.Errorf("%w: %s: image %d has no id", ErrInvalidManifest, m.Name, i)
		}
		if seen[img.ID] {
			return fmt.Errorf("%w: %s: duplicate image id %s", ErrInvalidManifest, m.Name, img.ID)
		}
		seen[img.ID] = true
	}
	return nil
}

func (m *Manifest) georef() raster.Georef {
	return raster.Georef{
		OriginX:     m.OriginX,
		OriginY:     m.OriginY,
		PixelSize:   m.PixelSize,
		ScaleFactor: m.ScaleFactor,
		Offset:      m.Offset,
		NoData:      m.NoData,
	}
}

// Collection is a raster.Collection over a manifest.
type Collection struct {
	manifest *Manifest
	fetcher  Fetcher
	from, to time.Time
}

func NewCollection(m *Manifest, f Fetcher) *Collection {
	return &Collection{manifest: m, fetcher: f}
}

// FilterDate keeps images acquired in [from, to). A zero bound is open.
// Images whose timestamp does not parse are kept so the builder can report
// them.
func (c *Collection) FilterDate(from, to time.Time) *Collection {
	out := *c
	out.from, out.to = from, to
	return &out
}

func (c *Collection) Name() string {
	return c.manifest.Name
}

func (c *Collection) Len() int {
	return len(c.manifest.Images)
}

func (c *Collection) Images(ctx context.Context) iter.Seq2[raster.Image, error] {
	return func(yield func(raster.Image, error) bool) {
		for i := range c.manifest.Images {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			entry := &c.manifest.Images[i]
			if !c.keep(entry) {
				continue
			}
			if !yield(&manifestImage{entry: entry, collection: c}, nil) {
				return
			}
		}
	}
}

func (c *Collection) keep(e *ImageEntry) bool {
	if c.from.IsZero() && c.to.IsZero() {
		return true
	}
	t, err := raster.ParseTimestamp(e.Time)
	if err != nil {
		return true
	}
	if !c.from.IsZero() && t.Before(c.from) {
		return false
	}
	if !c.to.IsZero() && !t.Before(c.to) {
		return false
	}
	return true
}

type manifestImage struct {
	entry      *ImageEntry
	collection *Collection
}

func (i *manifestImage) ID() string {
	return i.entry.ID
}

func (i *manifestImage) Timestamp() (time.Time, error) {
	return raster.ParseTimestamp(i.entry.Time)
}

func (i *manifestImage) Band(ctx context.Context, name string) (raster.Band, error) {
	file, ok := i.entry.Bands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in image %s", raster.ErrBandNotFound, name, i.entry.ID)
	}
	return &lazyBand{ctx: ctx, file: file, image: i}, nil
}

// lazyBand defers the download until the band is first used.
type lazyBand struct {
	ctx   context.Context
	file  string
	image *manifestImage
	grid  *raster.Grid
	err   error
}

func (b *lazyBand) Bound() orb.Bound {
	if g, err := b.load(); err == nil {
		return g.Bound()
	}
	// nothing loaded; report a bound that intersects everything so the
	// load error surfaces from ReduceMean
	return orb.Bound{Min: orb.Point{-1e300, -1e300}, Max: orb.Point{1e300, 1e300}}
}

func (b *lazyBand) Sample(region raster.Region, scale float64, fn func(float64, bool)) {
	if g, err := b.load(); err == nil {
		g.Sample(region, scale, fn)
	}
}

// ReduceMean lets the reducer see download and decode failures, which
// Sample cannot report.
func (b *lazyBand) ReduceMean(_ context.Context, region raster.Region, scale float64) (float64, int, error) {
	g, err := b.load()
	if err != nil {
		return 0, 0, err
	}
	var sum float64
	var n int
	g.Sample(region, scale, func(v float64, masked bool) {
		if !masked {
			sum += v
			n++
		}
	})
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n), n, nil
}

func (b *lazyBand) load() (*raster.Grid, error) {
	if b.grid != nil || b.err != nil {
		return b.grid, b.err
	}
	c := b.image.collection
	data, err := c.fetcher.Fetch(b.ctx, b.file)
	if err != nil {
		b.err = fmt.Errorf("image %s band file %s: %w", b.image.entry.ID, b.file, err)
		return nil, b.err
	}
	b.grid, b.err = raster.DecodeTIFF(bytes.NewReader(data), c.manifest.georef())
	return b.grid, b.err
}

// Options adjusts how Open builds a collection.
type Options struct {
	// Wrap decorates the band fetcher, e.g. with a cache. The manifest itself
	// is always fetched directly.
	Wrap func(Fetcher) Fetcher
}

// Open loads the manifest at location and returns its collection. location
// is a local path or a file, http, https or ftp URL; band paths in the
// manifest are relative to the manifest's directory.
func Open(ctx context.Context, location string, opts Options) (*Collection, error) {
	fetcher, name, err := fetcherFor(location)
	if err != nil {
		return nil, err
	}
	data, err := fetcher.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if opts.Wrap != nil {
		fetcher = opts.Wrap(fetcher)
	}
	return NewCollection(m, fetcher), nil
}

func fetcherFor(location string) (Fetcher, string, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path (a one-letter scheme is a Windows drive)
		return &Dir{Root: filepath.Dir(location)}, filepath.Base(location), nil
	}

	dir, name := path.Split(u.Path)
	base := *u
	base.Path = dir
	switch u.Scheme {
	case "file":
		return &Dir{Root: filepath.FromSlash(dir)}, name, nil
	case "http", "https":
		return NewHTTP(&base), name, nil
	case "ftp":
		return NewFTP(&base), name, nil
	}
	return nil, "", fmt.Errorf("unsupported manifest scheme %q", u.Scheme)
}
