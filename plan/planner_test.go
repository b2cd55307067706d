package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-orm/lattice/exec"
	"github.com/lattice-orm/lattice/schema"
	"github.com/lattice-orm/lattice/stmt"
	"github.com/lattice-orm/lattice/value"
)

// testSchema builds a two-model fixture: User{id int64 PK, name string} and
// Post{id int64 PK, authorID int64, author BelongsTo User}, with a
// secondary index on Post.authorID so the narrowest-index selection path
// has something to find.
func testSchema(t *testing.T, capability schema.Capability) (*schema.Schema, value.ModelID, value.ModelID) {
	t.Helper()
	b := schema.NewBuilder(capability)
	b.AddModel(schema.ModelDescriptor{
		Name: "User",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true},
			{Name: "name", Ty: value.Scalar(value.KindString)},
			{Name: "posts", Relation: &schema.RelationDescriptor{
				Kind: schema.RelationHasMany, TargetModel: "Post", PairField: "author",
			}},
		},
	})
	b.AddModel(schema.ModelDescriptor{
		Name: "Post",
		Fields: []schema.FieldDescriptor{
			{Name: "id", Ty: value.Scalar(value.KindI64), PrimaryKey: true},
			{Name: "authorID", Ty: value.Scalar(value.KindI64)},
			{Name: "author", Relation: &schema.RelationDescriptor{
				Kind: schema.RelationBelongsTo, TargetModel: "User", ForeignKeyFields: []string{"authorID"},
			}},
		},
		Indices: []schema.IndexDescriptor{{Fields: []string{"authorID"}}},
	})

	s, err := b.Build()
	require.NoError(t, err)

	userModel := findModel(s, "User")
	postModel := findModel(s, "Post")
	return s, userModel, postModel
}

func findModel(s *schema.Schema, name string) value.ModelID {
	for _, m := range s.App.Models {
		if m != nil && m.Name == name {
			return m.ID
		}
	}
	panic("plan_test: no model named " + name)
}

func sqlCapability() schema.Capability {
	return schema.Capability{SQL: true, ScanFallback: true, ConditionalUpdateReturning: true}
}

func kvCapability() schema.Capability {
	return schema.Capability{SQL: false, ScanFallback: false}
}

func pointQuery(model value.ModelID, idField value.FieldID) *stmt.Query {
	sel := stmt.Select{
		Source:    stmt.Source{Model: model},
		Returning: stmt.NewReturningModel(),
	}
	sel.Filter.Set(stmt.Eq(stmt.FieldRef(idField), stmt.Value(value.Int(1))))
	return &stmt.Query{Body: stmt.ExprSetSelect{Select: sel}}
}

func TestPlanQueryPointLookupSQL(t *testing.T) {
	s, userModel, _ := testSchema(t, sqlCapability())
	p := New(s, sqlCapability())

	idField := s.App.Model(userModel).FieldByName("id").ID
	plan, err := p.PlanQuery(userModel, pointQuery(userModel, idField))
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	qpk, ok := plan.Actions[0].(exec.QueryPk)
	require.True(t, ok)
	assert.NotNil(t, qpk.PKFilter)
}

func TestPlanQueryPointLookupKV(t *testing.T) {
	s, userModel, _ := testSchema(t, kvCapability())
	p := New(s, kvCapability())

	idField := s.App.Model(userModel).FieldByName("id").ID
	plan, err := p.PlanQuery(userModel, pointQuery(userModel, idField))
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2) // SetVar(key) + GetByKey

	_, ok := plan.Actions[0].(exec.SetVar)
	require.True(t, ok)
	get, ok := plan.Actions[1].(exec.GetByKey)
	require.True(t, ok)
	assert.Equal(t, s.TableIDFor(userModel), get.Table)
}

func TestPlanQueryIndexLookup(t *testing.T) {
	s, _, postModel := testSchema(t, sqlCapability())
	p := New(s, sqlCapability())

	authorField := s.App.Model(postModel).FieldByName("authorID").ID
	sel := stmt.Select{Source: stmt.Source{Model: postModel}, Returning: stmt.NewReturningModel()}
	sel.Filter.Set(stmt.Eq(stmt.FieldRef(authorField), stmt.Value(value.Int(7))))
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: sel}}

	plan, err := p.PlanQuery(postModel, q)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 3) // SetVar(key) + FindPkByIndex + GetByKey

	_, ok := plan.Actions[0].(exec.SetVar)
	require.True(t, ok)
	_, ok = plan.Actions[1].(exec.FindPkByIndex)
	require.True(t, ok)
	_, ok = plan.Actions[2].(exec.GetByKey)
	require.True(t, ok)
}

func TestPlanQueryScanFallbackRejectedWithoutCapability(t *testing.T) {
	s, userModel, _ := testSchema(t, kvCapability())
	p := New(s, kvCapability())

	nameField := s.App.Model(userModel).FieldByName("name").ID
	sel := stmt.Select{Source: stmt.Source{Model: userModel}, Returning: stmt.NewReturningModel()}
	sel.Filter.Set(stmt.Eq(stmt.FieldRef(nameField), stmt.Value(value.Int(1))))
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: sel}}

	_, err := p.PlanQuery(userModel, q)
	assert.Error(t, err)
}

func TestPlanQueryPreloadBuildsNestedMerge(t *testing.T) {
	s, userModel, _ := testSchema(t, sqlCapability())
	p := New(s, sqlCapability())

	idField := s.App.Model(userModel).FieldByName("id").ID
	postsField := s.App.Model(userModel).FieldByName("posts")

	sel := stmt.Select{
		Source: stmt.Source{Model: userModel},
		Returning: stmt.NewReturningModel(
			stmt.PathForField(userModel, indexOfField(s, userModel, postsField.ID)),
		),
	}
	sel.Filter.Set(stmt.Eq(stmt.FieldRef(idField), stmt.Value(value.Int(1))))
	q := &stmt.Query{Body: stmt.ExprSetSelect{Select: sel}}

	plan, err := p.PlanQuery(userModel, q)
	require.NoError(t, err)

	var sawMerge bool
	for _, a := range plan.Actions {
		if _, ok := a.(exec.NestedMerge); ok {
			sawMerge = true
		}
	}
	assert.True(t, sawMerge)
}

func indexOfField(s *schema.Schema, model value.ModelID, field value.FieldID) int {
	return field.Index
}

func insertOneUser(userModel value.ModelID) *stmt.Insert {
	return &stmt.Insert{
		Target: stmt.NewInsertModel(userModel),
		Source: &stmt.Query{Body: stmt.ExprSetValues{Rows: []stmt.Expr{
			stmt.ExprRecordNode{Fields: []stmt.Expr{
				stmt.Value(value.Int(1)), stmt.Value(value.String("a")),
			}},
		}}},
	}
}

func TestPlanInsertSQLUsesExecStatement(t *testing.T) {
	s, userModel, _ := testSchema(t, sqlCapability())
	p := New(s, sqlCapability())

	plan, err := p.PlanInsert(insertOneUser(userModel))
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	_, ok := plan.Actions[0].(exec.ExecStatement)
	assert.True(t, ok)
}

func TestPlanInsertKVUsesStructuredInsert(t *testing.T) {
	s, userModel, _ := testSchema(t, kvCapability())
	p := New(s, kvCapability())

	plan, err := p.PlanInsert(insertOneUser(userModel))
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	ins, ok := plan.Actions[0].(exec.Insert)
	require.True(t, ok)
	require.Equal(t, stmt.InsertTable, ins.Stmt.Target.Kind)
	assert.NotEmpty(t, ins.Stmt.Target.Table.Columns)
}

func TestPlanUpdateExactKey(t *testing.T) {
	s, userModel, _ := testSchema(t, sqlCapability())
	p := New(s, sqlCapability())

	idField := s.App.Model(userModel).FieldByName("id").ID
	nameField := s.App.Model(userModel).FieldByName("name").ID

	upd := &stmt.Update{Target: stmt.Source{Model: userModel}}
	upd.FilterExpr.Set(stmt.Eq(stmt.FieldRef(idField), stmt.Value(value.Int(1))))
	upd.Assignments = []stmt.Assignment{{Field: nameField, Value: stmt.Value(value.String("new"))}}

	plan, err := p.PlanUpdate(upd)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	action, ok := plan.Actions[0].(exec.UpdateByKey)
	require.True(t, ok)
	require.Len(t, action.Keys, 1)
	assert.Nil(t, action.Input)
}

func TestPlanDeleteNonKeyFilterPlansLookupFirst(t *testing.T) {
	s, userModel, _ := testSchema(t, sqlCapability())
	p := New(s, sqlCapability())

	nameField := s.App.Model(userModel).FieldByName("name").ID
	del := &stmt.Delete{From: stmt.Source{Model: userModel}}
	del.FilterExpr.Set(stmt.Eq(stmt.FieldRef(nameField), stmt.Value(value.String("gone"))))

	plan, err := p.PlanDelete(del)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)

	_, ok := plan.Actions[0].(exec.ExecStatement)
	require.True(t, ok)
	_, ok = plan.Actions[1].(exec.DeleteByKey)
	require.True(t, ok)
}

func TestPlanUpdateConditionalFallsBackToReadModifyWrite(t *testing.T) {
	cap := sqlCapability()
	cap.ConditionalUpdateReturning = false
	s, userModel, _ := testSchema(t, cap)
	p := New(s, cap)

	idField := s.App.Model(userModel).FieldByName("id").ID
	nameField := s.App.Model(userModel).FieldByName("name").ID

	upd := &stmt.Update{Target: stmt.Source{Model: userModel}}
	upd.FilterExpr.Set(stmt.Eq(stmt.FieldRef(idField), stmt.Value(value.Int(1))))
	upd.Condition = stmt.ConditionOf(stmt.Eq(stmt.FieldRef(nameField), stmt.Value(value.String("old"))))
	upd.Assignments = []stmt.Assignment{{Field: nameField, Value: stmt.Value(value.String("new"))}}

	plan, err := p.PlanUpdate(upd)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	rmw, ok := plan.Actions[0].(exec.ReadModifyWrite)
	require.True(t, ok)

	// Read is a count-aggregate pair, so it yields exactly one row even
	// when the targeted key matches nothing.
	readQ, ok := rmw.Read.(*stmt.Query)
	require.True(t, ok)
	sel, ok := readQ.Body.(stmt.ExprSetSelect)
	require.True(t, ok)
	rec, ok := sel.Select.Returning.Expr.(stmt.ExprRecordNode)
	require.True(t, ok)
	require.Len(t, rec.Fields, 2)
	matched, ok := rec.Fields[0].(stmt.ExprFunc)
	require.True(t, ok)
	assert.Equal(t, stmt.FuncCountIf, matched.Func)
	assert.Empty(t, matched.Args)
	satisfying, ok := rec.Fields[1].(stmt.ExprFunc)
	require.True(t, ok)
	assert.Equal(t, stmt.FuncCountIf, satisfying.Func)
	require.Len(t, satisfying.Args, 1)

	_, ok = rmw.Write.(*stmt.Update)
	assert.True(t, ok)
}
