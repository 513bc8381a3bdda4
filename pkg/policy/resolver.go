// Package policy maps content-change events to cache invalidation targets.
package policy

import (
	"slices"

	"github.com/bourkey/revalidate-webhook/internal/models"
)

// Document types with an explicit policy
const (
	TypePost     = "post"
	TypeSettings = "settings"
	TypeAuthor   = "author"
	TypeCategory = "category"
)

const (
	homePath     = "/"
	postPathBase = "/blog/"
)

type rule func(event models.ChangeEvent) []models.InvalidationTarget

var rules = map[string]rule{
	TypePost: func(event models.ChangeEvent) []models.InvalidationTarget {
		var targets []models.InvalidationTarget
		if event.HasSlug() {
			targets = append(targets, models.Path(postPathBase+event.Slug))
		}
		targets = append(targets, models.Path(homePath), models.Tag(TypePost))
		if event.HasSlug() {
			targets = append(targets, models.Tag(TypePost+":"+event.Slug))
		}
		return targets
	},
	// Settings feed the shared layout, so every page goes stale
	TypeSettings: func(models.ChangeEvent) []models.InvalidationTarget {
		return []models.InvalidationTarget{models.LayoutPath(homePath), models.Tag(TypeSettings)}
	},
	// Authors and categories are rendered inside post listings
	TypeAuthor: func(models.ChangeEvent) []models.InvalidationTarget {
		return []models.InvalidationTarget{models.Path(homePath), models.Tag(TypePost)}
	},
	TypeCategory: func(models.ChangeEvent) []models.InvalidationTarget {
		return []models.InvalidationTarget{models.Path(homePath), models.Tag(TypePost)}
	},
}

// Resolve returns the ordered invalidation targets for an event.
// Types without an explicit rule invalidate only the tag named after the type.
func Resolve(event models.ChangeEvent) []models.InvalidationTarget {
	r, ok := rules[event.Type]
	if !ok {
		return []models.InvalidationTarget{models.Tag(event.Type)}
	}
	return dedupe(r(event))
}

// KnownTypes returns the document types with an explicit rule, sorted
func KnownTypes() []string {
	types := make([]string, 0, len(rules))
	for t := range rules {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// IsKnownType reports whether docType has an explicit rule
func IsKnownType(docType string) bool {
	_, ok := rules[docType]
	return ok
}

// dedupe drops repeated targets, keeping first occurrences in order
func dedupe(targets []models.InvalidationTarget) []models.InvalidationTarget {
	seen := make(map[models.InvalidationTarget]struct{}, len(targets))
	out := targets[:0]
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
