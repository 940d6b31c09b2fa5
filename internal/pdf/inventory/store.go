// Package inventory caches the field inventories of PDF documents so that a
// batch filling the same template many times only introspects it once.
package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
)

// Inspector lists the fillable fields of a PDF
type Inspector interface {
	Inspect(ctx context.Context, pdf []byte) ([]fieldmap.FieldInfo, error)
}

// Store returns field inventories, consulting the cache before the inspector
type Store struct {
	inspector Inspector
	cache     *Cache
	group     singleflight.Group
	logger    *slog.Logger
}

// NewStore creates a store backed by inspector with a cache of the given
// capacity. A negative capacity disables caching.
func NewStore(inspector Inspector, capacity int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		inspector: inspector,
		logger:    logger,
	}
	if capacity >= 0 {
		s.cache = NewCache(capacity)
	}
	return s
}

// Identity returns the cache key of a PDF document
func Identity(pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return hex.EncodeToString(sum[:])
}

// Fields returns the inventory of pdf. Concurrent requests for the same
// document share one inspection.
func (s *Store) Fields(ctx context.Context, pdf []byte) ([]fieldmap.FieldInfo, error) {
	if s.cache == nil {
		return s.inspector.Inspect(ctx, pdf)
	}

	key := Identity(pdf)
	if fields, ok := s.cache.Get(key); ok {
		s.logger.Debug("inventory cache hit", "identity", key[:12], "fields", len(fields))
		return fields, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		fields, err := s.inspector.Inspect(ctx, pdf)
		if err != nil {
			return nil, err
		}
		s.cache.Put(key, fields)
		return fields, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("inventory inspected", "identity", key[:12], "shared", shared)
	return cloneFields(v.([]fieldmap.FieldInfo)), nil
}

// Invalidate drops the cached inventory of pdf
func (s *Store) Invalidate(pdf []byte) {
	if s.cache != nil {
		s.cache.Remove(Identity(pdf))
	}
}

// Stats returns cache statistics; the zero value when caching is disabled
func (s *Store) Stats() CacheStats {
	if s.cache == nil {
		return CacheStats{}
	}
	return s.cache.Stats()
}
