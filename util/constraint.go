package util

import "fmt"

// MaxIdentifierLength is the longest object name the Xugu catalog accepts.
const MaxIdentifierLength = 127

// BuildConstraintName generates a default constraint name as <table>_<column>_<suffix>.
// Names longer than MaxIdentifierLength are shortened by truncating the table part first,
// and only then the column part, so the suffix always survives.
func BuildConstraintName(tableName, columnName, suffix string) string {
	fullName := fmt.Sprintf("%s_%s_%s", tableName, columnName, suffix)
	if len(fullName) <= MaxIdentifierLength {
		return fullName
	}

	overflow := len(fullName) - MaxIdentifierLength
	tableRemove := min(overflow, max(len(tableName)-1, 0))
	columnRemove := min(overflow-tableRemove, max(len(columnName)-1, 0))

	truncatedTable := tableName[:len(tableName)-tableRemove]
	truncatedColumn := columnName[:len(columnName)-columnRemove]

	return fmt.Sprintf("%s_%s_%s", truncatedTable, truncatedColumn, suffix)
}
