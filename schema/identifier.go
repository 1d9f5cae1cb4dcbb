package schema

import (
	"strings"
)

// QuoteIdent returns name as a double-quoted identifier. Xugu folds unquoted
// identifiers to upper case, so names are always emitted quoted to keep the
// case the catalog reports.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName quotes and dot-joins the non-empty parts.
func QualifiedName(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			quoted = append(quoted, QuoteIdent(part))
		}
	}
	return strings.Join(quoted, ".")
}

// QuoteIdents quotes every name and joins them with ",".
func QuoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdent(name)
	}
	return strings.Join(quoted, ",")
}

// StringConstant returns s as a single-quoted SQL string literal.
func StringConstant(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
