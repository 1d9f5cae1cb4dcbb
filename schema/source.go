package schema

import (
	"fmt"
	"strings"

	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/parser"
)

// NormalizeSource returns the source text as a CREATE OR REPLACE <KIND>
// statement. Text that already starts with CREATE [OR REPLACE] <KIND> or with
// <KIND> gets its header rewritten; any other text is taken as the part that
// follows the header. Comments before the header stay in front of it and
// block comments after the body stay at the end.
func NormalizeSource(kind ObjectKind, text string) (string, error) {
	if !kind.IsSource() {
		return "", fmt.Errorf("%s has no source text", kind)
	}
	query, comments := parser.SplitMarginComments(strings.TrimSpace(text))
	body, err := sourceBody(kind, query)
	if err != nil {
		return "", err
	}
	if body == "" {
		return "", &ValidationError{Kind: kind, Reason: "source is empty"}
	}
	stmt := comments.Leading + "CREATE OR REPLACE " + kind.String() + " " + body
	if comments.Trailing != "" {
		stmt += " " + strings.TrimSpace(comments.Trailing)
	}
	return stmt, nil
}

// sourceBody strips the CREATE [OR REPLACE] <KIND> header from text.
func sourceBody(kind ObjectKind, text string) (string, error) {
	words := strings.Fields(kind.String())
	tkn := parser.NewStringTokenizer(text)
	tok := tkn.ScanSignificant()

	create := tok.IsKeyword("CREATE")
	if create {
		tok = tkn.ScanSignificant()
		if tok.IsKeyword("OR") {
			if tok = tkn.ScanSignificant(); !tok.IsKeyword("REPLACE") {
				return "", &ValidationError{Kind: kind, Reason: "expected REPLACE after CREATE OR"}
			}
			tok = tkn.ScanSignificant()
		}
	}

	if !tok.IsKeyword(words[0]) {
		if create {
			return "", &ValidationError{Kind: kind, Reason: fmt.Sprintf("source creates %s, not %s", strings.ToUpper(tok.Value), kind)}
		}
		return text, nil
	}
	end := tok.End
	for _, word := range words[1:] {
		tok = tkn.ScanSignificant()
		if !tok.IsKeyword(word) {
			if create {
				return "", &ValidationError{Kind: kind, Reason: fmt.Sprintf("source creates %s, not %s", words[0], kind)}
			}
			return text, nil
		}
		end = tok.End
	}
	return strings.TrimSpace(text[end:]), nil
}

func recompileStatement(s *Source) string {
	switch s.SourceKind {
	case KindPackageBody:
		return fmt.Sprintf("ALTER PACKAGE %s RECOMPILE BODY", s.QualifiedName())
	case KindTypeBody:
		return fmt.Sprintf("ALTER TYPE %s RECOMPILE BODY", s.QualifiedName())
	default:
		return fmt.Sprintf("ALTER %s %s RECOMPILE", s.SourceKind, s.QualifiedName())
	}
}

func triggerStateAction(s *Source) database.PersistAction {
	state, title := "ENABLE", "Enable trigger"
	if s.Disabled {
		state, title = "DISABLE", "Disable trigger"
	}
	return database.NewAction(title, fmt.Sprintf("ALTER TRIGGER %s %s", s.QualifiedName(), state))
}

func (g *Generator) sourceActions(cmd Command, s *Source) ([]database.PersistAction, error) {
	switch cmd.Kind {
	case CommandCreate:
		text, err := NormalizeSource(s.SourceKind, s.Text)
		if err != nil {
			return nil, err
		}
		actions := []database.PersistAction{s.validated("Create "+s.SourceKind.String(), text)}
		if s.SourceKind == KindTrigger && s.Disabled {
			actions = append(actions, triggerStateAction(s))
		}
		return actions, nil
	case CommandModify:
		allowed := []Property{PropSource}
		if s.SourceKind == KindTrigger {
			allowed = append(allowed, PropEnabled)
		}
		if err := cmd.Properties.check(s.SourceKind, allowed...); err != nil {
			return nil, err
		}
		var actions []database.PersistAction
		if cmd.Properties.Has(PropSource) {
			text, err := NormalizeSource(s.SourceKind, s.Text)
			if err != nil {
				return nil, err
			}
			actions = append(actions, s.validated("Replace "+s.SourceKind.String(), text))
		}
		if cmd.Properties.Has(PropEnabled) {
			actions = append(actions, triggerStateAction(s))
		}
		return actions, nil
	case CommandRename:
		return nil, unsupported(s, cmd.Kind, "replace the source under the new name")
	default:
		return []database.PersistAction{dropAction(s.SourceKind, s.QualifiedName(), "")}, nil
	}
}
