package recon

import (
	"strings"

	"github.com/ridgeline-build/jobcost-sync/pkg/db"
)

// ScopeFilter restricts rows to the jobs visible in this contractor context.
type ScopeFilter struct {
	ids               map[string]bool
	names             map[string]bool
	includeUnassigned bool
}

// NewScopeFilter computes the allow-sets from the internal project registry.
// A project is visible unless it is explicitly hidden or archived.
func NewScopeFilter(projects []db.Project, includeUnassigned bool) *ScopeFilter {
	f := &ScopeFilter{
		ids:               make(map[string]bool),
		names:             make(map[string]bool),
		includeUnassigned: includeUnassigned,
	}

	for _, p := range projects {
		if !p.Visible || p.Archived {
			continue
		}
		if p.ExternalID != "" {
			f.ids[p.ExternalID] = true
		}
		if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" {
			f.names[name] = true
		}
	}

	return f
}

// Apply keeps rows whose external job id is in the allow-set. The name
// allow-set is a fallback engaged only when no row in the dataset carries an
// id, so a mixed dataset never widens scope through name collisions. Rows
// with no job reference at all pass only under includeUnassigned.
func (f *ScopeFilter) Apply(rows []JobTransaction) []JobTransaction {
	anyIDs := false
	for _, row := range rows {
		if row.ProjectExternalID != "" {
			anyIDs = true
			break
		}
	}

	var kept []JobTransaction
	for _, row := range rows {
		if f.passes(row, anyIDs) {
			kept = append(kept, row)
		}
	}
	return kept
}

func (f *ScopeFilter) passes(row JobTransaction, anyIDs bool) bool {
	if !row.HasJobRef() {
		return f.includeUnassigned
	}
	if row.ProjectExternalID != "" {
		return f.ids[row.ProjectExternalID]
	}
	if anyIDs {
		return false
	}
	return f.names[strings.ToLower(strings.TrimSpace(row.ProjectName))]
}
