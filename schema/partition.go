package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xugu-publish/xugudef/database"
)

var intervalUnits = []string{"YEAR", "MONTH", "DAY", "HOUR"}

// partitionClause renders the PARTITION BY (or SUBPARTITION BY) clause of a
// table. Type and key come from the first partition of the level; HASH and
// AUTOMATIC partitions are not enumerated.
func partitionClause(t *Table, sub bool) string {
	partitions := t.PartitionLevel(sub)
	if len(partitions) == 0 {
		return ""
	}
	prefix := "PARTITION"
	if sub {
		prefix = "SUBPARTITION"
	}
	first := partitions[0]
	keys := QuoteIdents(first.Key)

	switch first.Type {
	case PartitionHash:
		return fmt.Sprintf("%s BY HASH(%s) %sS %d", prefix, keys, prefix, len(partitions))
	case PartitionAutomatic:
		return fmt.Sprintf("%s BY RANGE(%s) INTERVAL %d %s", prefix, keys, first.IntervalSpan, strings.ToUpper(first.IntervalUnit))
	default:
		values := make([]string, len(partitions))
		for i, p := range partitions {
			values[i] = QuoteIdent(p.Name) + " " + partitionValues(first.Type, p.Value)
		}
		return fmt.Sprintf("%s BY %s(%s) %sS(%s)", prefix, first.Type, keys, prefix, strings.Join(values, ","))
	}
}

func partitionValues(typ PartitionType, value string) string {
	if typ == PartitionList {
		return "VALUES(" + value + ")"
	}
	return "VALUES LESS THAN(" + value + ")"
}

// checkPartitions validates the partitions of a table about to be created.
// In strict mode a partition that disagrees with the first one of its level
// is an error; otherwise the first one wins.
func (g *Generator) checkPartitions(t *Table) error {
	for _, sub := range []bool{false, true} {
		partitions := t.PartitionLevel(sub)
		if len(partitions) == 0 {
			continue
		}
		first := partitions[0]
		if len(first.Key) == 0 {
			return invalid(t, "partition key is empty")
		}
		for _, p := range partitions {
			if g.config.StrictPartitions && (p.Type != first.Type || !slices.Equal(p.Key, first.Key)) {
				return fmt.Errorf("%w: %s is %s(%s), %s is %s(%s)", ErrMixedPartitions,
					QuoteIdent(first.Name), first.Type, strings.Join(first.Key, ","),
					QuoteIdent(p.Name), p.Type, strings.Join(p.Key, ","))
			}
			if err := validatePartition(p, first.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func validatePartition(p *Partition, typ PartitionType) error {
	switch typ {
	case PartitionRange, PartitionList:
		if strings.TrimSpace(p.Value) == "" {
			return invalid(p, typ.String()+" partition has no value")
		}
	case PartitionAutomatic:
		if p.IntervalSpan <= 0 || !slices.Contains(intervalUnits, strings.ToUpper(p.IntervalUnit)) {
			return invalid(p, "interval needs a positive span and one of "+strings.Join(intervalUnits, ", "))
		}
	}
	return nil
}

func (g *Generator) partitionActions(cmd Command, p *Partition) ([]database.PersistAction, error) {
	table, err := g.parentTable(p)
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
	switch cmd.Kind {
	case CommandCreate:
		if p.SubPartition {
			return nil, unsupported(p, cmd.Kind, "sub-partitions are declared with the table")
		}
		typ := p.Type
		if first := table.PartitionLevel(false); len(first) > 0 {
			typ = first[0].Type
		}
		if typ != PartitionRange && typ != PartitionList {
			return nil, unsupported(p, cmd.Kind, typ.String()+" partitions are managed by the server")
		}
		if err := validatePartition(p, typ); err != nil {
			return nil, err
		}
		return []database.PersistAction{database.NewAction("Add partition",
			fmt.Sprintf("ALTER TABLE %s ADD PARTITION %s %s", tableName, QuoteIdent(p.Name), partitionValues(typ, p.Value)))}, nil
	case CommandModify:
		if err := cmd.Properties.check(KindPartition, PropOnline); err != nil {
			return nil, err
		}
		return []database.PersistAction{database.NewAction("Alter partition",
			fmt.Sprintf("ALTER TABLE %s SET PARTITION %s %s", tableName, QuoteIdent(p.Name), onlineKeyword(!p.Offline)))}, nil
	case CommandRename:
		return nil, unsupported(p, cmd.Kind, "")
	default:
		return []database.PersistAction{database.NewAction("Drop partition",
			fmt.Sprintf("ALTER TABLE %s DROP PARTITION %s", tableName, QuoteIdent(p.Name)))}, nil
	}
}
