package main

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// maxRangeZones bounds one "a-b" term.
const maxRangeZones = 1 << 20

var sizeSuffixes = map[byte]uint{'K': 10, 'M': 20, 'G': 30, 'T': 40}

// ParseSize parses a byte count with an optional binary suffix: 4096, 64K,
// 8M, 8G, 1T. A trailing B is accepted ("8GB").
func ParseSize(s string) (uint64, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimSuffix(t, "B")
	if t == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	var shift uint
	if sh, ok := sizeSuffixes[t[len(t)-1]]; ok {
		shift = sh
		t = t[:len(t)-1]
	}
	n, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n > math.MaxUint64>>shift {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return n << shift, nil
}

// ParseRange parses a zone list such as "0-3,7" into sorted, distinct ids.
// "all" returns nil, which the heap reads as every zone.
func ParseRange(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "all" {
		return nil, nil
	}

	var ids []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.ParseUint(lo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid zone %q in %q", part, s)
		}
		last := first
		if isRange {
			if last, err = strconv.ParseUint(hi, 10, 64); err != nil || last < first {
				return nil, fmt.Errorf("invalid zone range %q in %q", part, s)
			}
			if last-first >= maxRangeZones {
				return nil, fmt.Errorf("zone range %q too large", part)
			}
		}
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
