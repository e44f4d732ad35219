package scheduling

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Resolver intersects the template's candidates with the booking ledger.
type Resolver struct {
	gen    *Generator
	ledger AppointmentRepository
	cache  *AvailabilityCache
}

func NewResolver(gen *Generator, ledger AppointmentRepository, cache *AvailabilityCache) *Resolver {
	return &Resolver{gen: gen, ledger: ledger, cache: cache}
}

// Free returns the unoccupied slots of the date that start after now,
// ascending and without duplicates. The grid may come from the cache; the
// ledger is read on every call.
func (r *Resolver) Free(ctx context.Context, doctorID uuid.UUID, date Date, now time.Time) ([]Slot, error) {
	grid, err := r.cache.Load(ctx, doctorID, date, func(ctx context.Context) ([]TimeOfDay, error) {
		return r.grid(ctx, doctorID, date)
	})
	if err != nil {
		return nil, err
	}
	occupied, err := r.ledger.OccupiedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load occupied times: %w", err)
	}
	taken := make(map[TimeOfDay]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}

	slots := make([]Slot, 0, len(grid))
	for _, t := range grid {
		if _, busy := taken[t]; busy {
			continue
		}
		if date.At(t, r.gen.Location()).After(now) {
			slots = append(slots, newSlot(t))
		}
	}
	return slots, nil
}

// grid is the template's candidate times for the date, sorted and
// deduplicated, with no ledger or "now" cut.
func (r *Resolver) grid(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	seq, err := r.gen.Template(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	seen := make(map[TimeOfDay]struct{})
	var out []TimeOfDay
	for c := range seq {
		if _, dup := seen[c.Time]; dup {
			continue
		}
		seen[c.Time] = struct{}{}
		out = append(out, c.Time)
	}
	slices.Sort(out)
	return out, nil
}

// OnGrid reports whether t is a template candidate for the date that starts
// after now. It ignores the ledger and never reads the cache.
func (r *Resolver) OnGrid(ctx context.Context, doctorID uuid.UUID, date Date, t TimeOfDay, now time.Time) (bool, error) {
	seq, err := r.gen.Candidates(ctx, doctorID, date, now)
	if err != nil {
		return false, err
	}
	for c := range seq {
		if c.Time == t {
			return true, nil
		}
	}
	return false, nil
}
