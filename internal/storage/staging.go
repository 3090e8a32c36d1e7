package storage

import (
	"fmt"
	"strings"

	"tvetl/internal/ddl"
)

// StagingSuffix marks the shadow copy of a table during Replace.
const StagingSuffix = "__staging"

// StagingName returns the shadow table name for table.
func StagingName(table string) string { return table + StagingSuffix }

// CheckLoads validates a Replace request: every table named once, rows
// aligned to their definition, and every referenced table in the set loaded
// before the tables referencing it.
func CheckLoads(loads []Load) error {
	pos := make(map[string]int, len(loads))
	for i, l := range loads {
		name := strings.TrimSpace(l.Def.FQN)
		if name == "" {
			return &SchemaError{Table: "?", Err: fmt.Errorf("empty table name at position %d", i)}
		}
		if _, dup := pos[name]; dup {
			return &SchemaError{Table: name, Err: fmt.Errorf("table listed twice")}
		}
		pos[name] = i
		n := len(l.Def.Columns)
		for j, r := range l.Rows {
			if len(r) != n {
				return &LoadError{Table: name, Err: fmt.Errorf("row %d has %d values, want %d", j, len(r), n)}
			}
		}
	}
	for i, l := range loads {
		for _, fk := range l.Def.ForeignKeys {
			if p, ok := pos[fk.RefTable]; ok && p > i {
				return &SchemaError{Table: l.Def.FQN, Err: fmt.Errorf("references %s which is loaded later", fk.RefTable)}
			}
		}
	}
	return nil
}

// StagingDefs returns the shadow definition of every load, with foreign keys
// between tables of the set pointing at their shadow copies.
func StagingDefs(loads []Load) []ddl.TableDef {
	refs := make(map[string]string, len(loads))
	for _, l := range loads {
		refs[l.Def.FQN] = StagingName(l.Def.FQN)
	}
	out := make([]ddl.TableDef, len(loads))
	for i, l := range loads {
		out[i] = l.Def.Renamed(refs[l.Def.FQN], refs)
	}
	return out
}

