package models

import "fmt"

// Kind is a logical resource type. Each kind is stored in a configured physical collection.
type Kind string

const (
	KindCharacters      Kind = "characters"
	KindLocations       Kind = "locations"
	KindThemes          Kind = "themes"
	KindArchetypes      Kind = "archetypes"
	KindStoryParameters Kind = "storyParameters"
	KindStories         Kind = "stories"
	KindStoryDrafts     Kind = "storyDrafts"
)

// AllKinds lists every kind in a stable order.
var AllKinds = []Kind{
	KindCharacters,
	KindLocations,
	KindThemes,
	KindArchetypes,
	KindStoryParameters,
	KindStories,
	KindStoryDrafts,
}

// ParseKind accepts the kind name used in URLs and seed files.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Collections maps kinds to physical collection names.
type Collections map[Kind]string

// Name returns the collection name for kind, or an error when it is not configured.
func (c Collections) Name(kind Kind) (string, error) {
	name, ok := c[kind]
	if !ok || name == "" {
		return "", fmt.Errorf("no collection configured for %s", kind)
	}
	return name, nil
}
