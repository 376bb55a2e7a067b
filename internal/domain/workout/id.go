package workout

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ID identifies a workout. It is a string of decimal digits so that stored
// records stay compatible with the legacy format and sort numerically in
// creation order.
type ID string

// Seq returns the numeric value of the id.
func (id ID) Seq() (uint64, error) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, string(id))
	}
	return n, nil
}

// Less orders ids numerically; ids that are not numeric sort after numeric
// ones and then lexically.
func (id ID) Less(other ID) bool {
	a, errA := id.Seq()
	b, errB := other.Seq()
	switch {
	case errA == nil && errB == nil:
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return id < other
	}
}

// IDSource hands out strictly increasing ids. The counter starts at the
// current wall clock in milliseconds and never goes backwards, so ids issued
// in the same millisecond or after a clock step still differ.
type IDSource struct {
	mu   sync.Mutex
	last uint64
	now  func() time.Time
}

// NewIDSource returns an IDSource driven by now, or time.Now when nil.
func NewIDSource(now func() time.Time) *IDSource {
	if now == nil {
		now = time.Now
	}
	return &IDSource{now: now}
}

// Next returns a fresh id.
func (s *IDSource) Next() ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := uint64(s.now().UnixMilli())
	if candidate <= s.last {
		candidate = s.last + 1
	}
	s.last = candidate
	return ID(strconv.FormatUint(candidate, 10))
}

// Observe makes sure later ids are greater than id. Non-numeric ids are ignored.
func (s *IDSource) Observe(id ID) {
	n, err := id.Seq()
	if err != nil {
		return
	}
	s.mu.Lock()
	if n > s.last {
		s.last = n
	}
	s.mu.Unlock()
}
