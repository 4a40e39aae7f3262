package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/archivist/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanLexical is a lexical index entry without a stored document.
	InconsistencyOrphanLexical InconsistencyType = iota
	// InconsistencyOrphanVector is a vector without a stored document.
	InconsistencyOrphanVector
	// InconsistencyMissingLexical is a stored document absent from the lexical index.
	InconsistencyMissingLexical
	// InconsistencyMissingVector is a stored document absent from the vector graph.
	InconsistencyMissingVector
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanLexical:
		return "orphan_lexical"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingLexical:
		return "missing_lexical"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one cross-store issue.
type Inconsistency struct {
	Type  InconsistencyType `json:"-"`
	Kind  string            `json:"type"`
	DocID string            `json:"doc_id"`
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of stored documents verified.
	Checked         int             `json:"checked"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Duration        time.Duration   `json:"duration"`
}

// Count returns the number of issues of type t.
func (r *CheckResult) Count(t InconsistencyType) int {
	n := 0
	for _, i := range r.Inconsistencies {
		if i.Type == t {
			n++
		}
	}
	return n
}

// ConsistencyChecker compares the entity store, which is the source of
// truth, against the lexical index and the optional vector graph.
type ConsistencyChecker struct {
	entities *store.EntityStore
	lexical  *store.LexicalIndex
	vectors  *store.HNSWStore
}

// NewConsistencyChecker creates a checker. vectors may be nil, in which
// case vector checks are skipped.
func NewConsistencyChecker(entities *store.EntityStore, lexical *store.LexicalIndex, vectors *store.HNSWStore) *ConsistencyChecker {
	return &ConsistencyChecker{entities: entities, lexical: lexical, vectors: vectors}
}

// Check scans all stores for inconsistencies. Issues are ordered by type
// then document id.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	ids, err := c.entities.DocumentIDs(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(ids))
	for _, id := range ids {
		stored[id] = true
	}

	var issues []Inconsistency
	add := func(t InconsistencyType, id string) {
		issues = append(issues, Inconsistency{Type: t, Kind: t.String(), DocID: id})
	}

	lexical := make(map[string]bool, c.lexical.Len())
	for i := 0; i < c.lexical.Len(); i++ {
		id := c.lexical.Doc(uint32(i)).ID
		lexical[id] = true
		if !stored[id] {
			add(InconsistencyOrphanLexical, id)
		}
	}

	var vectors map[string]bool
	if c.vectors != nil {
		vecIDs := c.vectors.IDs()
		vectors = make(map[string]bool, len(vecIDs))
		for _, id := range vecIDs {
			vectors[id] = true
			if !stored[id] {
				add(InconsistencyOrphanVector, id)
			}
		}
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !lexical[id] {
			add(InconsistencyMissingLexical, id)
		}
		if vectors != nil && !vectors[id] {
			add(InconsistencyMissingVector, id)
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].DocID < issues[j].DocID
	})

	result := &CheckResult{
		Checked:         len(ids),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}
	if len(issues) > 0 {
		slog.Debug("consistency_issues_found",
			slog.Int("checked", result.Checked),
			slog.Int("issues", len(issues)))
	}
	return result, nil
}

// Repair deletes orphan vectors. Orphan and missing lexical entries, and
// missing vectors, need a rebuild and are only logged. It returns the
// number of vectors removed.
func (c *ConsistencyChecker) Repair(issues []Inconsistency) int {
	var orphanVectors []string
	var needRebuild int

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanVector:
			orphanVectors = append(orphanVectors, issue.DocID)
		default:
			needRebuild++
		}
	}

	if len(orphanVectors) > 0 && c.vectors != nil {
		c.vectors.Delete(orphanVectors)
		slog.Info("orphan_vectors_deleted", slog.Int("count", len(orphanVectors)))
	}

	if needRebuild > 0 {
		slog.Warn("index has missing entries, run 'archivist build' to rebuild",
			slog.Int("count", needRebuild))
	}
	return len(orphanVectors)
}

// QuickCheck compares document counts only.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	st, err := c.entities.Stats(ctx)
	if err != nil {
		return false, err
	}
	lexicalCount := c.lexical.Len()
	consistent := st.Documents == lexicalCount
	vectorCount := -1
	if c.vectors != nil {
		vectorCount = c.vectors.Count()
		consistent = consistent && st.Documents == vectorCount
	}

	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("entities", st.Documents),
			slog.Int("lexical", lexicalCount),
			slog.Int("vectors", vectorCount))
	}
	return consistent, nil
}
