// Package partition routes valuation dates to the declared partition ranges.
package partition

import (
	"fmt"
	"regexp"
	"sort"

	"rawmatqc/pkg/domain"
)

// Range is a declared partition with inclusive lower and upper bounds.
type Range = domain.PartitionRange

// Handle identifies the partition a date routed to.
type Handle struct {
	Name  string
	Index int
	Lower domain.Date
	Upper domain.Date
}

// Range returns the declared range behind the handle.
func (h Handle) Range() Range {
	return Range{Name: h.Name, Lower: h.Lower, Upper: h.Upper}
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Router resolves dates against an ordered, contiguous set of ranges. A
// Router is immutable and safe for concurrent use.
type Router struct {
	ranges []Range
}

// NewRouter validates the ranges and returns a router over them. Ranges may
// be supplied in any order.
func NewRouter(ranges []Range) (*Router, error) {
	if len(ranges) == 0 {
		return nil, &domain.ConfigurationError{Reason: "no partitions declared"}
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Lower.Before(sorted[j].Lower) })

	seen := make(map[string]struct{}, len(sorted))
	for i, r := range sorted {
		if err := validateRange(r); err != nil {
			return nil, err
		}
		if _, dup := seen[r.Name]; dup {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("partition name %q declared twice", r.Name)}
		}
		seen[r.Name] = struct{}{}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if !r.Lower.After(prev.Upper) {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("partition %q overlaps %q", r.Name, prev.Name)}
		}
		if r.Lower != prev.Upper.AddDays(1) {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("gap between partition %q (ends %s) and %q (starts %s)", prev.Name, prev.Upper, r.Name, r.Lower)}
		}
	}
	return &Router{ranges: sorted}, nil
}

func validateRange(r Range) error {
	if !namePattern.MatchString(r.Name) {
		return &domain.ConfigurationError{Reason: fmt.Sprintf("partition name %q must match %s", r.Name, namePattern)}
	}
	if r.Lower.IsZero() || r.Upper.IsZero() {
		return &domain.ConfigurationError{Reason: fmt.Sprintf("partition %q needs both bounds", r.Name)}
	}
	if r.Upper.Before(r.Lower) {
		return &domain.ConfigurationError{Reason: fmt.Sprintf("partition %q upper bound %s precedes lower bound %s", r.Name, r.Upper, r.Lower)}
	}
	return nil
}

// Route returns the partition holding the date or an OutOfRangeError.
func (r *Router) Route(d domain.Date) (Handle, error) {
	idx := sort.Search(len(r.ranges), func(i int) bool { return !r.ranges[i].Upper.Before(d) })
	if idx == len(r.ranges) || d.Before(r.ranges[idx].Lower) {
		return Handle{}, &domain.OutOfRangeError{Date: d}
	}
	return r.handle(idx), nil
}

// Lookup finds a partition by name.
func (r *Router) Lookup(name string) (Handle, bool) {
	for i, rg := range r.ranges {
		if rg.Name == name {
			return r.handle(i), true
		}
	}
	return Handle{}, false
}

// Extend returns a new router with an additional range appended after the
// current last range. Existing ranges are untouched.
func (r *Router) Extend(next Range) (*Router, error) {
	last := r.ranges[len(r.ranges)-1]
	if next.Lower != last.Upper.AddDays(1) {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("extension %q must start on %s", next.Name, last.Upper.AddDays(1))}
	}
	ranges := append(r.Ranges(), next)
	return NewRouter(ranges)
}

// Ranges returns a copy of the declared ranges in ascending order.
func (r *Router) Ranges() []Range {
	out := make([]Range, len(r.ranges))
	copy(out, r.ranges)
	return out
}

// Handles lists every partition in ascending order.
func (r *Router) Handles() []Handle {
	out := make([]Handle, len(r.ranges))
	for i := range r.ranges {
		out[i] = r.handle(i)
	}
	return out
}

// Names lists partition names in ascending order.
func (r *Router) Names() []string {
	out := make([]string, len(r.ranges))
	for i, rg := range r.ranges {
		out[i] = rg.Name
	}
	return out
}

func (r *Router) handle(i int) Handle {
	rg := r.ranges[i]
	return Handle{Name: rg.Name, Index: i, Lower: rg.Lower, Upper: rg.Upper}
}

// CheckRecorded verifies that ranges previously persisted by a durable
// backend are still declared unchanged. Declaring additional trailing ranges
// is allowed.
func (r *Router) CheckRecorded(recorded []Range) error {
	current := make(map[string]Range, len(r.ranges))
	for _, rg := range r.ranges {
		current[rg.Name] = rg
	}
	for _, old := range recorded {
		now, ok := current[old.Name]
		if !ok {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("recorded partition %q is no longer declared", old.Name)}
		}
		if now != old {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("partition %q moved from [%s, %s] to [%s, %s]", old.Name, old.Lower, old.Upper, now.Lower, now.Upper)}
		}
	}
	return nil
}
