package filter

import (
	"fmt"
	"path"
	"strings"

	"github.com/brettbedarf/scopedfs"
	"github.com/brettbedarf/scopedfs/internal/util"
)

// Rules is a declarative glob filter loadable from YAML or JSON.
//
// Patterns use [path.Match] syntax. A pattern containing a separator is matched
// against the full client path ("/docs/*.md"); any other pattern is matched
// against the base name ("*.tmp"). A denied path hides everything below it.
// Deny wins over allow, and an empty Allow list allows everything. The root is
// always visible.
type Rules struct {
	Allow        []string `yaml:"allow,omitempty" json:"allow,omitempty"`
	Deny         []string `yaml:"deny,omitempty" json:"deny,omitempty"`
	HideDotfiles bool     `yaml:"hide_dotfiles,omitempty" json:"hide_dotfiles,omitempty"`
}

// IsZero reports whether r would make everything visible
func (r Rules) IsZero() bool {
	return len(r.Allow) == 0 && len(r.Deny) == 0 && !r.HideDotfiles
}

// Validate reports the first malformed pattern
func (r Rules) Validate() error {
	for _, list := range [][]string{r.Allow, r.Deny} {
		for _, pat := range list {
			if _, err := path.Match(pat, ""); err != nil {
				return fmt.Errorf("bad pattern %q: %w", pat, err)
			}
		}
	}
	return nil
}

// Filter compiles r. It returns nil for zero rules so callers can skip
// filtering entirely.
func (r Rules) Filter() scopedfs.Filter {
	if r.IsZero() {
		return nil
	}
	allow := append([]string(nil), r.Allow...)
	deny := append([]string(nil), r.Deny...)
	hideDot := r.HideDotfiles

	return func(p string) bool {
		if p == "/" {
			return true
		}
		if hideDot && hasDotSegment(p) {
			return false
		}
		if denied(deny, p) {
			return false
		}
		return len(allow) == 0 || matchAny(allow, p)
	}
}

// Merge appends o's patterns to r and enables HideDotfiles if either does
func (r *Rules) Merge(o Rules) {
	r.Allow = append(r.Allow, o.Allow...)
	r.Deny = append(r.Deny, o.Deny...)
	r.HideDotfiles = r.HideDotfiles || o.HideDotfiles
}

// LoadRulesFile reads Rules from a .yaml, .yml or .json file and validates them
func LoadRulesFile(file string) (Rules, error) {
	var r Rules
	if err := util.DecodeFile(file, &r); err != nil {
		return Rules{}, err
	}
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("%s: %w", file, err)
	}
	return r, nil
}

func matchAny(patterns []string, p string) bool {
	base := path.Base(p)
	for _, pat := range patterns {
		subject := base
		if strings.Contains(pat, "/") {
			subject = p
		}
		if ok, _ := path.Match(pat, subject); ok {
			return true
		}
	}
	return false
}

// denied reports whether p or any of its ancestors matches a deny pattern
func denied(deny []string, p string) bool {
	for ; p != "/" && p != "."; p = path.Dir(p) {
		if matchAny(deny, p) {
			return true
		}
	}
	return false
}

func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
