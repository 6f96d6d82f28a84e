package store

import (
	"context"
	"fmt"
	"time"

	"github.com/agentic-research/florg/internal/treepath"
)

// DateToPath returns the calendar position of date relative to the node a
// calendar was generated below: month then day, both zero based. Days 26
// to 31 use numeric components, so calendars built by earlier florg
// releases (ZA..ZF for those days) do not share these addresses.
func DateToPath(date time.Time) treepath.Path {
	return treepath.Of(uint32(date.Month())-1, uint32(date.Day())-1)
}

// CreateCalendar fills parent with one node per month of year and one node
// per day below its month, committed once. A parent that already has
// children is refused.
func (s *Storage) CreateCalendar(ctx context.Context, parent treepath.Path, year int) (int, error) {
	if err := checkOrdinary(parent); err != nil {
		return 0, err
	}
	if year < 1 || year > 9999 {
		return 0, fmt.Errorf("%w: year %d", ErrInvalid, year)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.index.Children(parent)) > 0 {
		return 0, fmt.Errorf("%w: %q already has children", ErrConflict, parent.Human())
	}

	written := 0
	put := func(p treepath.Path, text string) error {
		if _, _, err := s.replaceLocked(p, text); err != nil {
			return err
		}
		written++
		return nil
	}

	for m := time.January; m <= time.December; m++ {
		first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		if err := put(append(parent.Clone(), uint32(m)-1), first.Format("Jan 2006")); err != nil {
			return written, err
		}
	}
	for d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		text := fmt.Sprintf("%s (%s KW %02d)", d.Format("2006-01-02"), d.Format("Mon"), week)
		p := append(parent.Clone(), DateToPath(d)...)
		if err := put(p, text); err != nil {
			return written, err
		}
	}
	return written, s.commit(ctx, fmt.Sprintf("Added date notes below %s", display(parent)))
}
