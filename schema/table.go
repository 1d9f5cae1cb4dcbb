package schema

import (
	"fmt"
	"strings"

	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/parser"
	"github.com/xugu-publish/xugudef/util"
)

func (g *Generator) tableActions(cmd Command, t *Table) ([]database.PersistAction, error) {
	switch cmd.Kind {
	case CommandCreate:
		return g.createTable(t)
	case CommandModify:
		if err := cmd.Properties.check(KindTable, PropComment, PropOnline); err != nil {
			return nil, err
		}
		if actions, ok := modifyCommentOnly(cmd, t.QualifiedName()); ok {
			return actions, nil
		}
		var actions []database.PersistAction
		if cmd.Properties.Has(PropOnline) {
			actions = append(actions, database.NewAction("Alter table",
				fmt.Sprintf("ALTER TABLE %s SET %s", t.QualifiedName(), onlineKeyword(!t.Offline))))
		}
		if cmd.Properties.Has(PropComment) {
			actions = append(actions, commentAction(KindTable, t.QualifiedName(), t.Comment))
		}
		return actions, nil
	case CommandRename:
		return []database.PersistAction{database.NewAction("Rename table",
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s", t.QualifiedName(), QuoteIdent(cmd.NewName)))}, nil
	default:
		suffix := ""
		if g.cascade(cmd) {
			suffix = " CASCADE CONSTRAINTS"
		}
		return []database.PersistAction{dropAction(KindTable, t.QualifiedName(), suffix)}, nil
	}
}

// createTable emits the CREATE TABLE with every column, constraint and
// partition of t, followed by constraint disabling, comments and indexes.
func (g *Generator) createTable(t *Table) ([]database.PersistAction, error) {
	if len(t.Columns) == 0 {
		return nil, invalid(t, "a table needs at least one column")
	}
	if err := g.checkPartitions(t); err != nil {
		return nil, err
	}

	var decls []string
	for _, c := range t.Columns {
		decls = append(decls, columnDeclaration(c, true, false))
	}
	for _, c := range t.Constraints {
		decls = append(decls, constraintDeclaration(c))
	}

	sep := g.sep()
	var sql strings.Builder
	sql.WriteString("CREATE TABLE ")
	sql.WriteString(t.QualifiedName())
	sql.WriteString(" (")
	sql.WriteString(sep)
	sql.WriteString(joinDeclarations(decls, sep))
	sql.WriteString(sep)
	sql.WriteString(")")
	if t.Tablespace != "" {
		sql.WriteString(" TABLESPACE ")
		sql.WriteString(QuoteIdent(t.Tablespace))
	}
	if clause := partitionClause(t, false); clause != "" {
		sql.WriteString(" ")
		sql.WriteString(clause)
		if sub := partitionClause(t, true); sub != "" {
			sql.WriteString(" ")
			sql.WriteString(sub)
		}
	}

	actions := []database.PersistAction{database.NewAction("Create table", sql.String())}
	for _, c := range t.Constraints {
		if c.Disabled {
			actions = append(actions, constraintStateAction(t.QualifiedName(), c))
		}
	}
	if t.Comment != "" {
		actions = append(actions, commentAction(KindTable, t.QualifiedName(), t.Comment))
	}
	for _, idx := range t.Indexes {
		actions = append(actions, createIndexAction(idx))
	}
	if t.Offline {
		actions = append(actions, database.NewAction("Alter table",
			fmt.Sprintf("ALTER TABLE %s SET OFFLINE", t.QualifiedName())))
	}
	return actions, nil
}

// joinDeclarations puts one declaration per line, separated by commas. A
// declaration ending with a "--" comment gets its comma before the comment.
func joinDeclarations(decls []string, sep string) string {
	var sb strings.Builder
	for i, decl := range decls {
		sb.WriteString("  ")
		if i == len(decls)-1 {
			sb.WriteString(decl)
			break
		}
		body, comment := parser.SplitTrailingLineComment(decl)
		sb.WriteString(body)
		sb.WriteString(",")
		sb.WriteString(comment)
		sb.WriteString(sep)
	}
	return sb.String()
}

// columnDeclaration renders `"NAME" TYPE [IDENTITY(1,1)] [DEFAULT x] [NOT NULL] [COMMENT '..']`.
// explicitNull writes NULL for nullable columns, used when dropping NOT NULL.
func columnDeclaration(c *Column, withComment bool, explicitNull bool) string {
	parts := []string{QuoteIdent(c.Name), c.DataType}
	if c.AutoIncrement {
		parts = append(parts, "IDENTITY(1,1)")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	} else if explicitNull {
		parts = append(parts, "NULL")
	}
	if withComment && c.Comment != "" {
		parts = append(parts, "COMMENT "+StringConstant(c.Comment))
	}
	return strings.Join(parts, " ")
}

func (g *Generator) columnActions(cmd Command, c *Column) ([]database.PersistAction, error) {
	if cmd.Kind == CommandCreate && c.DataType == "" {
		return nil, invalid(c, "data type is empty")
	}
	table, err := g.parentTable(c)
	if err != nil {
		return nil, err
	}
	if !table.Persisted {
		if cmd.Kind == CommandCreate {
			return nil, nil // declared by the table's CREATE
		}
		return nil, fmt.Errorf("%w: table %s", ErrNotPersisted, table.QualifiedName())
	}

	tableName := table.QualifiedName()
	columnName := QualifiedName(table.Schema, table.Name, c.Name)
	switch cmd.Kind {
	case CommandCreate:
		return []database.PersistAction{database.NewAction("Add column",
			fmt.Sprintf("ALTER TABLE %s ADD %s", tableName, columnDeclaration(c, true, false)))}, nil
	case CommandModify:
		if err := cmd.Properties.check(KindColumn, PropComment, PropDataType, PropNotNull, PropDefault); err != nil {
			return nil, err
		}
		if actions, ok := modifyCommentOnly(cmd, columnName); ok {
			return actions, nil
		}
		actions := []database.PersistAction{database.NewAction("Alter column",
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", tableName, columnDeclaration(c, false, cmd.Properties.Has(PropNotNull))))}
		if cmd.Properties.Has(PropComment) {
			actions = append(actions, commentAction(KindColumn, columnName, c.Comment))
		}
		return actions, nil
	case CommandRename:
		return []database.PersistAction{database.NewAction("Rename column",
			fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tableName, QuoteIdent(c.Name), QuoteIdent(cmd.NewName)))}, nil
	default:
		sql := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tableName, QuoteIdent(c.Name))
		if g.cascade(cmd) {
			sql += " CASCADE"
		}
		return []database.PersistAction{database.NewAction("Drop column", sql)}, nil
	}
}

var constraintSuffixes = map[ConstraintType]string{
	ConstraintPrimaryKey: "PK",
	ConstraintUnique:     "UK",
	ConstraintForeignKey: "FK",
	ConstraintCheck:      "CK",
}

// ConstraintName returns the constraint's name, or the default
// <table>_<column>_<suffix> when it has none.
func ConstraintName(c *Constraint) string {
	if c.Name != "" {
		return c.Name
	}
	column := ""
	if len(c.Columns) > 0 {
		column = c.Columns[0]
	}
	return util.BuildConstraintName(c.Table, column, constraintSuffixes[c.Type])
}

func constraintDeclaration(c *Constraint) string {
	decl := "CONSTRAINT " + QuoteIdent(ConstraintName(c)) + " "
	switch c.Type {
	case ConstraintCheck:
		return decl + "CHECK(" + c.Check + ")"
	case ConstraintForeignKey:
		decl += fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s(%s)",
			QuoteIdents(c.Columns), QualifiedName(refSchema(c), c.RefTable), QuoteIdents(c.RefColumns))
		if c.OnDelete != "" {
			decl += " ON DELETE " + strings.ToUpper(c.OnDelete)
		}
		return decl
	default:
		return decl + c.Type.String() + "(" + QuoteIdents(c.Columns) + ")"
	}
}

func refSchema(c *Constraint) string {
	if c.RefSchema != "" {
		return c.RefSchema
	}
	return c.Schema
}

func constraintStateAction(tableName string, c *Constraint) database.PersistAction {
	state, title := "ENABLE", "Enable constraint"
	if c.Disabled {
		state, title = "DISABLE", "Disable constraint"
	}
	return database.NewAction(title,
		fmt.Sprintf("ALTER TABLE %s %s CONSTRAINT %s", tableName, state, QuoteIdent(ConstraintName(c))))
}

func (g *Generator) constraintActions(cmd Command, c *Constraint) ([]database.PersistAction, error) {
	if cmd.Kind == CommandCreate {
		if err := validateConstraint(c); err != nil {
			return nil, err
		}
	}
	table, err := g.parentTable(c)
	if err != nil {
		return nil, err
	}
	if !table.Persisted {
		if cmd.Kind == CommandCreate {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: table %s", ErrNotPersisted, table.QualifiedName())
	}

	tableName := table.QualifiedName()
	switch cmd.Kind {
	case CommandCreate:
		actions := []database.PersistAction{database.NewAction("Add constraint",
			fmt.Sprintf("ALTER TABLE %s ADD %s", tableName, constraintDeclaration(c)))}
		if c.Disabled {
			actions = append(actions, constraintStateAction(tableName, c))
		}
		return actions, nil
	case CommandModify:
		if err := cmd.Properties.check(KindConstraint, PropEnabled); err != nil {
			return nil, err
		}
		return []database.PersistAction{constraintStateAction(tableName, c)}, nil
	case CommandRename:
		return []database.PersistAction{database.NewAction("Rename constraint",
			fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s", tableName, QuoteIdent(ConstraintName(c)), QuoteIdent(cmd.NewName)))}, nil
	default:
		sql := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", tableName, QuoteIdent(ConstraintName(c)))
		if g.cascade(cmd) {
			sql += " CASCADE"
		}
		return []database.PersistAction{database.NewAction("Drop constraint", sql)}, nil
	}
}

func validateConstraint(c *Constraint) error {
	switch c.Type {
	case ConstraintCheck:
		if strings.TrimSpace(c.Check) == "" {
			return invalid(c, "check expression is empty")
		}
	case ConstraintForeignKey:
		if c.RefTable == "" || len(c.RefColumns) != len(c.Columns) || len(c.Columns) == 0 {
			return invalid(c, "foreign key needs a referenced table and matching column lists")
		}
	default:
		if len(c.Columns) == 0 {
			return invalid(c, "no columns")
		}
	}
	return nil
}

func createIndexAction(idx *Index) database.PersistAction {
	columns := make([]string, len(idx.Columns))
	for i, col := range idx.Columns {
		columns[i] = QuoteIdent(col.Name)
		if col.Descending {
			columns[i] += " DESC"
		}
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return database.NewAction("Create index", fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)",
		unique, QuoteIdent(idx.Name), QualifiedName(idx.Schema, idx.Table), strings.Join(columns, ",")))
}

func (g *Generator) indexActions(cmd Command, idx *Index) ([]database.PersistAction, error) {
	if cmd.Kind == CommandCreate && len(idx.Columns) == 0 {
		return nil, invalid(idx, "no columns")
	}
	table, err := g.parentTable(idx)
	if err != nil {
		return nil, err
	}
	if !table.Persisted {
		if cmd.Kind == CommandCreate {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: table %s", ErrNotPersisted, table.QualifiedName())
	}

	indexName := QualifiedName(table.Schema, table.Name, idx.Name)
	switch cmd.Kind {
	case CommandCreate:
		return []database.PersistAction{createIndexAction(idx)}, nil
	case CommandModify:
		if err := cmd.Properties.check(KindIndex, PropComment); err != nil {
			return nil, unsupported(idx, cmd.Kind, "drop and create the index instead")
		}
		actions, _ := modifyCommentOnly(cmd, indexName)
		return actions, nil
	case CommandRename:
		return []database.PersistAction{database.NewAction("Rename index",
			fmt.Sprintf("ALTER INDEX %s RENAME TO %s", indexName, QuoteIdent(cmd.NewName)))}, nil
	default:
		return []database.PersistAction{dropAction(KindIndex, indexName, "")}, nil
	}
}

func onlineKeyword(online bool) string {
	if online {
		return "ONLINE"
	}
	return "OFFLINE"
}
