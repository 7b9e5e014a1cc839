// Package cache keeps the active session of each store in Redis. The POS
// polls sesion-activa on every screen load, so the lookup is served from
// here and invalidated whenever the session changes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cajapos/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix = "caja:sesion-activa:"
	genPrefix = "caja:sesion-activa-gen:"
)

var errObsoleta = errors.New("cache: generation changed")

type SesionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSesionCache(rdb *redis.Client, ttl time.Duration) *SesionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SesionCache{rdb: rdb, ttl: ttl}
}

func Key(tiendaID string) string { return keyPrefix + tiendaID }

func GenKey(tiendaID string) string { return genPrefix + tiendaID }

// Get returns the cached session. Redis errors are logged and reported as
// a miss; the cache is never the source of truth.
func (c *SesionCache) Get(ctx context.Context, tiendaID string) (*dto.SesionCajaResponse, bool) {
	raw, err := c.rdb.Get(ctx, Key(tiendaID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("tienda_id", tiendaID).Msg("cache: get failed")
		}
		return nil, false
	}
	var s dto.SesionCajaResponse
	if err := json.Unmarshal(raw, &s); err != nil {
		log.Warn().Err(err).Str("tienda_id", tiendaID).Msg("cache: corrupt entry")
		return nil, false
	}
	return &s, true
}

// Generacion returns the invalidation counter of the store. A caller reads
// it before loading the session from the database and hands it to Set.
// -1 means Redis could not be read and Set will skip the write.
func (c *SesionCache) Generacion(ctx context.Context, tiendaID string) int64 {
	gen, err := c.rdb.Get(ctx, GenKey(tiendaID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		log.Warn().Err(err).Str("tienda_id", tiendaID).Msg("cache: generation read failed")
		return -1
	}
	return gen
}

// Set stores s only if no Invalidate ran since gen was read, so a slow
// reader cannot put back a session that a writer already replaced.
func (c *SesionCache) Set(ctx context.Context, tiendaID string, s *dto.SesionCajaResponse, gen int64) {
	if gen < 0 {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	genKey := GenKey(tiendaID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errObsoleta
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key(tiendaID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errObsoleta), errors.Is(err, redis.TxFailedErr):
		log.Debug().Str("tienda_id", tiendaID).Msg("cache: stale session not cached")
	default:
		log.Warn().Err(err).Str("tienda_id", tiendaID).Msg("cache: set failed")
	}
}

// Invalidate drops the entry and bumps the generation in one transaction.
func (c *SesionCache) Invalidate(ctx context.Context, tiendaID string) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenKey(tiendaID))
		pipe.Del(ctx, Key(tiendaID))
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("tienda_id", tiendaID).Msg("cache: invalidate failed")
	}
}
