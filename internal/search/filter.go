package search

import (
	"strings"

	"github.com/Aman-CERP/archivist/internal/store"
)

// matchesEntity reports whether any person, organization or concept of meta
// contains entity, ignoring ASCII case.
func matchesEntity(meta *store.DocMeta, entity string) bool {
	if meta == nil {
		return false
	}
	needle := strings.ToLower(entity)
	for _, list := range [][]string{meta.Persons, meta.Organizations, meta.Concepts} {
		for _, name := range list {
			if strings.Contains(strings.ToLower(name), needle) {
				return true
			}
		}
	}
	return false
}
