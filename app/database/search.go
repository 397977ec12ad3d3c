package database

import (
	"strings"

	"golang.org/x/text/cases"
)

var queryFolder = cases.Fold()

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring LIKE pattern from user
// input. The query side is Unicode case-folded; the column side is lowered
// in SQL. LIKE metacharacters in the input are escaped.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(queryFolder.String(query)) + "%"
}
