package schema

import "strings"

// Name is a schema identifier (model, field, table, or column name). It
// exists as a distinct type, rather than a bare string, so renaming rules
// (pluralization, case normalization) have one obvious place to live.
type Name string

// NewName normalizes s into a Name: trimmed, as-is casing preserved (case
// normalization happens at table/column derivation time via golang.org/
// x/text, not here).
func NewName(s string) Name { return Name(strings.TrimSpace(s)) }

func (n Name) String() string { return string(n) }
