package schema

import (
	"strconv"
	"strings"

	"github.com/xugu-publish/xugudef/database"
)

// BuildSequence renders CREATE SEQUENCE or, forUpdate, ALTER SEQUENCE. Clauses
// come in a fixed order and unset bounds are left out; START WITH only
// appears on create.
func BuildSequence(s *Sequence, forUpdate bool) string {
	verb := "CREATE"
	if forUpdate {
		verb = "ALTER"
	}
	clauses := []string{verb + " SEQUENCE " + s.QualifiedName()}
	if !forUpdate && s.StartWith != nil {
		clauses = append(clauses, "START WITH "+strconv.FormatInt(*s.StartWith, 10))
	}
	if s.Increment != nil {
		clauses = append(clauses, "INCREMENT BY "+strconv.FormatInt(*s.Increment, 10))
	}
	if s.MinValue != nil {
		clauses = append(clauses, "MINVALUE "+strconv.FormatInt(*s.MinValue, 10))
	}
	if s.MaxValue != nil {
		clauses = append(clauses, "MAXVALUE "+strconv.FormatInt(*s.MaxValue, 10))
	}
	if s.Cycle {
		clauses = append(clauses, "CYCLE")
	} else {
		clauses = append(clauses, "NOCYCLE")
	}
	if s.Cache > 0 {
		clauses = append(clauses, "CACHE "+strconv.FormatInt(s.Cache, 10))
	} else {
		clauses = append(clauses, "NOCACHE")
	}
	if s.Order {
		clauses = append(clauses, "ORDER")
	} else {
		clauses = append(clauses, "NOORDER")
	}
	return strings.Join(clauses, " ")
}

func (g *Generator) sequenceActions(cmd Command, s *Sequence) ([]database.PersistAction, error) {
	if s.MinValue != nil && s.MaxValue != nil && *s.MinValue > *s.MaxValue {
		return nil, invalid(s, "MINVALUE is greater than MAXVALUE")
	}
	if s.Increment != nil && *s.Increment == 0 {
		return nil, invalid(s, "INCREMENT BY must not be zero")
	}

	switch cmd.Kind {
	case CommandCreate:
		actions := []database.PersistAction{database.NewAction("Create sequence", BuildSequence(s, false))}
		if s.Comment != "" {
			actions = append(actions, commentAction(KindSequence, s.QualifiedName(), s.Comment))
		}
		return actions, nil
	case CommandModify:
		if err := cmd.Properties.check(KindSequence, PropComment, PropIncrement, PropMinValue, PropMaxValue, PropCycle, PropCache, PropOrder); err != nil {
			return nil, err
		}
		if actions, ok := modifyCommentOnly(cmd, s.QualifiedName()); ok {
			return actions, nil
		}
		actions := []database.PersistAction{database.NewAction("Alter sequence", BuildSequence(s, true))}
		if cmd.Properties.Has(PropComment) {
			actions = append(actions, commentAction(KindSequence, s.QualifiedName(), s.Comment))
		}
		return actions, nil
	case CommandRename:
		return nil, unsupported(s, cmd.Kind, "")
	default:
		return []database.PersistAction{dropAction(KindSequence, s.QualifiedName(), "")}, nil
	}
}
