// Package filter builds visibility filters for a confined filesystem.
//
// A filter receives canonical client paths ("/", "/a", "/a/b") and reports
// whether the path is visible. Paths it rejects behave as missing for reads and
// as forbidden for writes.
package filter

import (
	"path"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/paths"
)

// AllowAll makes every path visible
func AllowAll(string) bool { return true }

// AllowSet makes exactly the listed paths visible. Entries may be written with
// or without the leading separator; entries that would escape are ignored.
func AllowSet(allowed ...string) scopedfs.Filter {
	set := make(map[string]struct{}, len(allowed))
	for _, p := range allowed {
		if clean, err := paths.Clean(p); err == nil {
			set[clean] = struct{}{}
		}
	}
	return func(p string) bool {
		_, ok := set[p]
		return ok
	}
}

// AllowSetWithParents is AllowSet plus every ancestor of the listed paths, so a
// client can walk down to them from the root
func AllowSetWithParents(allowed ...string) scopedfs.Filter {
	var all []string
	for _, p := range allowed {
		clean, err := paths.Clean(p)
		if err != nil {
			continue
		}
		for ; clean != "/"; clean = path.Dir(clean) {
			all = append(all, clean)
		}
		all = append(all, "/")
	}
	return AllowSet(all...)
}

// All is visible only where every non-nil filter is
func All(filters ...scopedfs.Filter) scopedfs.Filter {
	filters = compact(filters)
	return func(p string) bool {
		for _, f := range filters {
			if !f(p) {
				return false
			}
		}
		return true
	}
}

// Any is visible where at least one non-nil filter is. With no filters nothing
// is visible.
func Any(filters ...scopedfs.Filter) scopedfs.Filter {
	filters = compact(filters)
	return func(p string) bool {
		for _, f := range filters {
			if f(p) {
				return true
			}
		}
		return false
	}
}

// Not inverts f
func Not(f scopedfs.Filter) scopedfs.Filter {
	return func(p string) bool { return !f(p) }
}

func compact(filters []scopedfs.Filter) []scopedfs.Filter {
	out := make([]scopedfs.Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
