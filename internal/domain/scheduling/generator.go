package scheduling

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Candidate is a slot start produced from the weekly template.
type Candidate struct {
	Time TimeOfDay
	At   time.Time
}

// WindowCandidates walks each available window in steps of granularity and
// yields every step that fits entirely before the window end. Overlapping
// windows yield duplicates. The sequence can be ranged over repeatedly.
func WindowCandidates(windows []*WeeklyAvailability, date Date, loc *time.Location, granularity time.Duration) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		if granularity < time.Minute {
			return
		}
		day := date.Weekday()
		for _, w := range windows {
			if !w.IsAvailable || w.DayOfWeek != day {
				continue
			}
			for t := w.StartTime; t.Add(granularity) <= w.EndTime; t = t.Add(granularity) {
				if !yield(Candidate{Time: t, At: date.At(t, loc)}) {
					return
				}
			}
		}
	}
}

// After drops candidates at or before now.
func After(seq iter.Seq[Candidate], now time.Time) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for c := range seq {
			if !c.At.After(now) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// Generator derives candidate slots for a (doctor, date) from the template.
type Generator struct {
	templates   AvailabilityRepository
	loc         *time.Location
	granularity time.Duration
}

func NewGenerator(templates AvailabilityRepository, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{templates: templates, loc: loc, granularity: SlotGranularity}
}

// Template returns every candidate for the date regardless of the current
// moment. An empty sequence means the doctor does not work that day.
func (g *Generator) Template(ctx context.Context, doctorID uuid.UUID, date Date) (iter.Seq[Candidate], error) {
	windows, err := g.templates.ListByDoctorDay(ctx, doctorID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load availability for %s: %w", date, err)
	}
	return WindowCandidates(windows, date, g.loc, g.granularity), nil
}

// Candidates is Template restricted to starts strictly after now.
func (g *Generator) Candidates(ctx context.Context, doctorID uuid.UUID, date Date, now time.Time) (iter.Seq[Candidate], error) {
	seq, err := g.Template(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return After(seq, now), nil
}

// Location is the clinic zone candidates are placed in.
func (g *Generator) Location() *time.Location { return g.loc }
