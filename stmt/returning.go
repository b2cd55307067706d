package stmt

// ReturningKind tags the Returning variant.
type ReturningKind uint8

const (
	ReturningModel ReturningKind = iota
	ReturningChanged
	ReturningExpr
)

// Returning describes what a statement yields back to the caller: the full
// model (optionally with preloaded relations), just a changed-count
// acknowledgement, or an arbitrary projection expression. The Lowerer
// rewrites ReturningModel into an explicit ReturningExpr column projection
// before planning.
type Returning struct {
	Kind    ReturningKind
	Include []Path
	Expr    Expr
}

func NewReturningModel(include ...Path) Returning {
	return Returning{Kind: ReturningModel, Include: include}
}

func NewReturningChanged() Returning { return Returning{Kind: ReturningChanged} }

func NewReturningExpr(e Expr) Returning { return Returning{Kind: ReturningExpr, Expr: e} }

func (r Returning) IsModel() bool   { return r.Kind == ReturningModel }
func (r Returning) IsChanged() bool { return r.Kind == ReturningChanged }
func (r Returning) IsExpr() bool    { return r.Kind == ReturningExpr }
