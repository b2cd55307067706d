package value

// The identifiers below are opaque and minted only by schema.Builder. They
// are cheap to copy and stored by value throughout the expression IR, the
// schema graph, and the plan so that the schema graph can be cyclic (e.g.
// BelongsTo/HasMany pairs) without any ownership cycle in Go values.

// FieldID identifies a field within a model.
type FieldID struct {
	Model ModelID
	Index int
}

// TableID identifies a table within a DB schema.
type TableID uint32

// ColumnID identifies a column within a table.
type ColumnID struct {
	Table TableID
	Index int
}

// IndexID identifies an app-level index within its owning model.
type IndexID struct {
	Model ModelID
	Index int
}

// DBIndexID identifies a storage-level index within its owning table.
type DBIndexID struct {
	Table TableID
	Index int
}
