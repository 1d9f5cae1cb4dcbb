package schema

import (
	"strings"

	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/parser"
)

// ViewStatement renders CREATE [OR REPLACE] [FORCE] VIEW from flags; the
// definition may be a bare query or a complete CREATE VIEW statement.
func ViewStatement(v *View, replace bool, force bool) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if replace {
		sb.WriteString("OR REPLACE ")
	}
	if force {
		sb.WriteString("FORCE ")
	}
	sb.WriteString("VIEW ")
	sb.WriteString(v.QualifiedName())
	sb.WriteString(" AS ")
	sb.WriteString(viewQuery(v.Definition))
	return sb.String()
}

// viewQuery strips a leading "CREATE ... VIEW name [(columns)] AS" header.
func viewQuery(definition string) string {
	definition = strings.TrimSpace(definition)
	tkn := parser.NewStringTokenizer(definition)
	if tok := tkn.ScanSignificant(); !tok.IsKeyword("CREATE") {
		return definition
	}
	depth := 0
	for {
		tok := tkn.ScanSignificant()
		switch {
		case tok.Type == parser.TokenEOF:
			return definition
		case tok.Value == "(":
			depth++
		case tok.Value == ")":
			depth--
		case depth == 0 && tok.IsKeyword("AS"):
			return strings.TrimSpace(definition[tok.End:])
		}
	}
}

func (g *Generator) viewActions(cmd Command, v *View) ([]database.PersistAction, error) {
	if cmd.Kind == CommandCreate || cmd.Properties.Has(PropDefinition) {
		if strings.TrimSpace(viewQuery(v.Definition)) == "" {
			return nil, invalid(v, "definition is empty")
		}
	}

	switch cmd.Kind {
	case CommandCreate:
		actions := []database.PersistAction{database.NewAction("Create view", ViewStatement(v, false, v.Force))}
		if v.Comment != "" {
			actions = append(actions, commentAction(KindView, v.QualifiedName(), v.Comment))
		}
		return actions, nil
	case CommandModify:
		if err := cmd.Properties.check(KindView, PropComment, PropDefinition); err != nil {
			return nil, err
		}
		if actions, ok := modifyCommentOnly(cmd, v.QualifiedName()); ok {
			return actions, nil
		}
		actions := []database.PersistAction{database.NewAction("Replace view", ViewStatement(v, true, v.Force))}
		if cmd.Properties.Has(PropComment) {
			actions = append(actions, commentAction(KindView, v.QualifiedName(), v.Comment))
		}
		return actions, nil
	case CommandRename:
		return nil, unsupported(v, cmd.Kind, "replace the view under the new name")
	default:
		// never cascades; dependent objects become invalid instead
		return []database.PersistAction{dropAction(KindView, v.QualifiedName(), "")}, nil
	}
}
