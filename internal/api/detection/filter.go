package detection

import (
	"sort"
	"strings"

	"github.com/Sei0217/visually-impaired/internal/entity"
)

// ClassSet is an allow-list of class labels. The empty set allows everything.
type ClassSet map[string]struct{}

func NewClassSet(names ...string) ClassSet {
	set := make(ClassSet, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// ParseClassSet reads a comma separated allow-list such as "person,car".
func ParseClassSet(s string) ClassSet {
	return NewClassSet(strings.Split(s, ",")...)
}

func (s ClassSet) Active() bool {
	return len(s) > 0
}

func (s ClassSet) Allows(label string) bool {
	if !s.Active() {
		return true
	}
	_, ok := s[label]
	return ok
}

func (s ClassSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RestrictIndices maps the allow-list onto detector class indices, in ascending
// order. It returns nil when no restriction applies.
func RestrictIndices(names []string, allow ClassSet) []int {
	if !allow.Active() {
		return nil
	}

	indices := make([]int, 0, len(allow))
	for i, name := range names {
		if allow.Allows(name) {
			indices = append(indices, i)
		}
	}
	return indices
}

// FilterDetections drops detections whose label is not allowed. Relative order
// of the survivors is kept.
func FilterDetections(detections []entity.Detection, allow ClassSet) []entity.Detection {
	if !allow.Active() {
		return detections
	}

	filtered := make([]entity.Detection, 0, len(detections))
	for _, d := range detections {
		if allow.Allows(d.Label) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
