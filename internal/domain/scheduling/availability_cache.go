package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hospital/frontdesk/internal/platform/cache"
)

// AvailabilityCache holds, per (doctor, date), the template grid: the
// deduplicated, sorted candidate times before the ledger and the "now" cut
// are applied. Bookings never change an entry, so only template edits
// invalidate, by bumping a per-doctor generation instead of enumerating dates.
//
// A nil *AvailabilityCache is valid and always calls through.
type AvailabilityCache struct {
	store cache.Store
	ttl   time.Duration
	group singleflight.Group
}

func NewAvailabilityCache(store cache.Store, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{store: store, ttl: ttl}
}

func generationKey(doctorID uuid.UUID) string {
	return "avail:" + doctorID.String() + ":gen"
}

func dayKey(doctorID uuid.UUID, gen string, date Date) string {
	return fmt.Sprintf("avail:%s:%s:%s", doctorID, gen, date)
}

func (c *AvailabilityCache) generation(ctx context.Context, doctorID uuid.UUID) string {
	b, err := c.store.Get(ctx, generationKey(doctorID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("availability cache generation read failed")
		}
		return "0"
	}
	return string(b)
}

// Load returns the cached grid or computes it with fill. Concurrent misses
// for the same key share one fill. Cache errors are logged and ignored.
func (c *AvailabilityCache) Load(ctx context.Context, doctorID uuid.UUID, date Date, fill func(context.Context) ([]TimeOfDay, error)) ([]TimeOfDay, error) {
	if c == nil {
		return fill(ctx)
	}
	log := zerolog.Ctx(ctx)
	key := dayKey(doctorID, c.generation(ctx, doctorID), date)

	b, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var times []TimeOfDay
		if jsonErr := json.Unmarshal(b, &times); jsonErr == nil {
			return times, nil
		}
		log.Warn().Str("key", key).Msg("discarding undecodable availability cache entry")
	case !errors.Is(err, cache.ErrMiss):
		log.Warn().Err(err).Str("key", key).Msg("availability cache read failed")
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		fillCtx := context.WithoutCancel(ctx)
		times, err := fill(fillCtx)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(times); err == nil {
			if err := c.store.Set(fillCtx, key, b, c.ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("availability cache write failed")
			}
		}
		return times, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TimeOfDay), nil
}

// InvalidateDoctor orphans every entry of the doctor by moving to a new
// generation; orphans age out with their TTL.
func (c *AvailabilityCache) InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.store.Set(ctx, generationKey(doctorID), []byte(uuid.NewString()), 0); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("availability cache generation bump failed")
	}
}
