package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list query may be ordered by.
// Nothing outside the whitelist reaches SQL.
type sortColumns map[string]struct{}

func newSortColumns(columns ...string) sortColumns {
	s := make(sortColumns, len(columns))
	for _, c := range columns {
		s[c] = struct{}{}
	}
	return s
}

var journalEntrySortColumns = newSortColumns(
	"id",
	"created_at",
	"updated_at",
	"posting_date",
	"document_date",
	"journal_entry_number",
	"reference",
	"total_debit",
	"posted_at",
)

// orderBy resolves a requested column and direction. Direction defaults to
// descending; ok is false when the column is empty or not whitelisted.
func (s sortColumns) orderBy(column, dir string) (clause.OrderByColumn, bool) {
	column = strings.TrimSpace(column)
	if _, ok := s[column]; !ok {
		return clause.OrderByColumn{}, false
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}, true
}
