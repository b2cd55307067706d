// Package schema resolves a set of [ModelDescriptor] values into a [Schema]:
// an application-level model graph ([app.Schema]), a storage-level table
// layout ([db.Schema]), and the [Mapping] between them.
//
// Unlike the generated-builder schemas this engine's Non-goals exclude,
// ModelDescriptor is a plain value a caller constructs directly (by hand, or
// from some other source of model metadata) and passes to a [Builder]:
//
//	b := schema.NewBuilder(driverCapability)
//	b.AddModel(schema.ModelDescriptor{
//	    Name: "User",
//	    Fields: []schema.FieldDescriptor{
//	        {Name: "id", Ty: value.Scalar(value.KindId), PrimaryKey: true, Auto: app.AutoUUID},
//	        {Name: "email", Ty: value.Scalar(value.KindString), Unique: true},
//	        {Name: "posts", Relation: &schema.RelationDescriptor{
//	            Kind: schema.RelationHasMany, TargetModel: "Post", PairField: "author",
//	        }},
//	    },
//	    Indices: []schema.IndexDescriptor{{Fields: []string{"email"}, Unique: true}},
//	})
//	sch, err := b.Build()
//
// # Build steps
//
// Build runs in five passes: assign a [value.ModelID]/[value.FieldID] to every model/field, resolve
// BelongsTo/HasMany/HasOne relation pairs by target model name, choose a
// storage [value.Type] per field under the driver's [Capability], derive or
// apply an explicit table name (optionally prefixed via
// [Builder.WithTableNamePrefix]), and finally emit columns, indices, and the
// primary key, verifying the result is internally consistent.
//
// # Relations
//
// A BelongsTo field names the source columns holding its foreign key
// (ForeignKeyFields) and resolves its target's primary key arity against
// them; HasMany/HasOne instead name the BelongsTo field on the other side
// (PairField) they mirror. Relation fields carry no storage of their own —
// the foreign key lives in ordinary primitive fields declared alongside the
// BelongsTo field that names them.
//
// # Embedded fields
//
// A field may embed a fixed group of primitive sub-fields inline instead of
// a single column, via FieldDescriptor.Embedded; Build spreads its
// sub-fields across one column each, like any other primitive field.
package schema
