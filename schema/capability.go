package schema

// StorageTypes describes which native column types a driver supports, so
// the Builder can choose a storage representation per field rather than
// assuming a lowest-common-denominator type everywhere.
type StorageTypes struct {
	// Varchar is the maximum length a native VARCHAR-family column
	// supports; zero means the driver has no such limit (e.g. it falls
	// back to TEXT/BLOB for long strings).
	Varchar int

	// NativeDecimal reports whether the driver has a fixed-point decimal
	// column type (as opposed to emulating Decimal via TEXT/numeric).
	NativeDecimal bool

	// NativeUUID reports whether the driver has a native UUID column
	// type (Postgres) as opposed to storing UUIDs as CHAR(36)/BLOB.
	NativeUUID bool

	// NativeJSON reports whether the driver can store Record/List values
	// in a native JSON(B) column rather than requiring normalization.
	NativeJSON bool
}

// Capability describes what a Driver supports, consulted by the Builder
// when choosing column types and by the Planner when deciding whether a
// scan fallback is permitted.
type Capability struct {
	// SQL is true for relational drivers (driver/sql); false for KV/
	// document drivers (driver/kv) that only support key-addressed
	// operations.
	SQL bool

	// NativeAutoIncrement reports whether the driver can auto-populate
	// an integer primary key itself (SQL AUTO_INCREMENT/ROWID) as
	// opposed to requiring the engine to generate one (UUID, KV sequence).
	NativeAutoIncrement bool

	// NativeReturning reports whether DML statements can return affected
	// rows inline (Postgres/SQLite RETURNING) as opposed to requiring a
	// follow-up SELECT (MySQL, handled via the LastInsertId func).
	NativeReturning bool

	// ConditionalUpdateReturning reports whether the driver can perform
	// a conditional UPDATE and report whether the condition held in one
	// round trip, as opposed to requiring the planner's ReadModifyWrite
	// fallback.
	ConditionalUpdateReturning bool

	// ScanFallback reports whether the driver permits a full table scan
	// when no usable index covers a filter. KV drivers typically set this
	// false.
	ScanFallback bool

	StorageTypes StorageTypes
}
