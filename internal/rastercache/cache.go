// Package rastercache keeps downloaded band files in a local badger store so
// repeat runs over the same collection skip the network.
package rastercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/lox/basinseries/internal/metrics"
)

const DefaultTTL = 7 * 24 * time.Hour

// Fetcher is the upstream a cache sits in front of.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	Location() string
}

type Config struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	TTL      time.Duration
	Logger   *zap.SugaredLogger
}

// Cache is safe for concurrent use.
type Cache struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	ttl time.Duration
	log *zap.SugaredLogger
	now func() time.Time
}

type entry struct {
	FetchedAt time.Time `msgpack:"fetched_at"`
	Size      int       `msgpack:"size"`
	Data      []byte    `msgpack:"data"`
}

func Open(cfg Config) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open raster cache: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	c := &Cache{db: db, enc: enc, dec: dec, ttl: cfg.TTL, log: cfg.Logger, now: time.Now}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	return c, nil
}

func (c *Cache) Close() error {
	c.dec.Close()
	return c.db.Close()
}

// Wrap returns a fetcher that serves from the cache and falls back to f.
func (c *Cache) Wrap(f Fetcher) *Cached {
	return &Cached{cache: c, next: f}
}

func (c *Cache) get(key []byte) ([]byte, bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry: %w", err)
	}
	if c.now().Sub(e.FetchedAt) > c.ttl {
		return nil, false, nil
	}
	data, err := c.dec.DecodeAll(e.Data, make([]byte, 0, e.Size))
	if err != nil {
		return nil, false, fmt.Errorf("decompress entry: %w", err)
	}
	return data, true, nil
}

func (c *Cache) put(key, data []byte) error {
	raw, err := msgpack.Marshal(&entry{
		FetchedAt: c.now(),
		Size:      len(data),
		Data:      c.enc.EncodeAll(data, make([]byte, 0, len(data)/2)),
	})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, raw).WithTTL(c.ttl))
	})
}

// Cached is a Fetcher backed by a Cache.
type Cached struct {
	cache *Cache
	next  Fetcher
}

func (c *Cached) Location() string {
	return c.next.Location()
}

// Fetch returns the cached bytes for name, downloading them on a miss.
// Cache failures are logged and never fail the fetch.
func (c *Cached) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := []byte(c.next.Location() + "|" + name)

	data, ok, err := c.cache.get(key)
	switch {
	case err != nil:
		c.cache.log.Warnw("raster cache read failed", "key", string(key), "error", err)
		metrics.CacheLookups.WithLabelValues("error").Inc()
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return data, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	data, err = c.next.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.cache.put(key, data); err != nil {
		c.cache.log.Warnw("raster cache write failed", "key", string(key), "error", err)
	}
	return data, nil
}
