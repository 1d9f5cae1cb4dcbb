package schema

import (
	"fmt"

	"github.com/xugu-publish/xugudef/database"
)

func (g *Generator) schemaActions(cmd Command, s *SchemaObject) ([]database.PersistAction, error) {
	name := QuoteIdent(s.Name)
	switch cmd.Kind {
	case CommandCreate:
		sql := "CREATE SCHEMA " + name
		if s.Owner != "" {
			sql += " AUTHORIZATION " + QuoteIdent(s.Owner)
		}
		actions := []database.PersistAction{database.NewAction("Create schema", sql)}
		if s.Comment != "" {
			actions = append(actions, commentAction(KindSchema, name, s.Comment))
		}
		return actions, nil
	case CommandModify:
		if err := cmd.Properties.check(KindSchema, PropComment); err != nil {
			return nil, err
		}
		actions, _ := modifyCommentOnly(cmd, name)
		return actions, nil
	case CommandRename:
		return []database.PersistAction{database.NewAction("Rename schema",
			fmt.Sprintf("ALTER SCHEMA %s RENAME TO %s", name, QuoteIdent(cmd.NewName)))}, nil
	default:
		suffix := ""
		if g.cascade(cmd) {
			suffix = " CASCADE"
		}
		return []database.PersistAction{dropAction(KindSchema, name, suffix)}, nil
	}
}

func synonymName(s *Synonym) string {
	if s.Public {
		return QuoteIdent(s.Name)
	}
	return s.QualifiedName()
}

func synonymStatement(s *Synonym, replace bool) string {
	sql := "CREATE "
	if replace {
		sql += "OR REPLACE "
	}
	if s.Public {
		sql += "PUBLIC "
	}
	return sql + fmt.Sprintf("SYNONYM %s FOR %s", synonymName(s), QualifiedName(s.TargetSchema, s.TargetName))
}

func (g *Generator) synonymActions(cmd Command, s *Synonym) ([]database.PersistAction, error) {
	if cmd.Kind != CommandDelete && s.TargetName == "" {
		return nil, invalid(s, "target object is empty")
	}
	switch cmd.Kind {
	case CommandCreate:
		return []database.PersistAction{database.NewAction("Create synonym", synonymStatement(s, false))}, nil
	case CommandModify:
		if err := cmd.Properties.check(KindSynonym, PropTarget); err != nil {
			return nil, err
		}
		return []database.PersistAction{database.NewAction("Replace synonym", synonymStatement(s, true))}, nil
	case CommandRename:
		return nil, unsupported(s, cmd.Kind, "create a synonym under the new name")
	default:
		keyword := "DROP SYNONYM "
		if s.Public {
			keyword = "DROP PUBLIC SYNONYM "
		}
		return []database.PersistAction{database.NewAction("Drop synonym", keyword+synonymName(s))}, nil
	}
}
