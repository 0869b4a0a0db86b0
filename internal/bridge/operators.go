package bridge

import "context"

// Equaler is implemented by proxies supporting engine equality.
type Equaler interface {
	Eq(ctx context.Context, other any) (any, error)
	Ne(ctx context.Context, other any) (any, error)
}

// Orderer is implemented by proxies supporting engine ordering.
type Orderer interface {
	Lt(ctx context.Context, other any) (any, error)
	Gt(ctx context.Context, other any) (any, error)
	Le(ctx context.Context, other any) (any, error)
	Ge(ctx context.Context, other any) (any, error)
}

// Arithmetic is implemented by proxies supporting engine arithmetic.
// The R-prefixed forms put the host operand on the left.
type Arithmetic interface {
	Plus(ctx context.Context, other any) (any, error)
	Minus(ctx context.Context, other any) (any, error)
	Times(ctx context.Context, other any) (any, error)
	Divide(ctx context.Context, other any) (any, error)
	Power(ctx context.Context, other any) (any, error)
	RPlus(ctx context.Context, other any) (any, error)
	RMinus(ctx context.Context, other any) (any, error)
	RTimes(ctx context.Context, other any) (any, error)
	RDivide(ctx context.Context, other any) (any, error)
	RPower(ctx context.Context, other any) (any, error)
	UPlus(ctx context.Context) (any, error)
	UMinus(ctx context.Context) (any, error)
	Abs(ctx context.Context) (any, error)
}

// Logical is implemented by proxies supporting engine logical operators.
type Logical interface {
	And(ctx context.Context, other any) (any, error)
	Or(ctx context.Context, other any) (any, error)
	Not(ctx context.Context) (any, error)
	Truth(ctx context.Context) (bool, error)
}

var (
	_ Equaler    = (*Object)(nil)
	_ Orderer    = (*Object)(nil)
	_ Arithmetic = (*Object)(nil)
	_ Logical    = (*Object)(nil)
)

// operator invokes an engine operator function with nargout 1.
func (o *Object) operator(ctx context.Context, name string, operands ...any) (any, error) {
	args, err := o.bridge.EncodeAll(ctx, operands)
	if err != nil {
		return nil, err
	}
	out, err := o.bridge.engine.Invoke(ctx, name, nil, args, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return o.bridge.Decode(ctx, out[0])
}

func (o *Object) Eq(ctx context.Context, other any) (any, error) { return o.operator(ctx, "eq", o, other) }
func (o *Object) Ne(ctx context.Context, other any) (any, error) { return o.operator(ctx, "ne", o, other) }
func (o *Object) Lt(ctx context.Context, other any) (any, error) { return o.operator(ctx, "lt", o, other) }
func (o *Object) Gt(ctx context.Context, other any) (any, error) { return o.operator(ctx, "gt", o, other) }
func (o *Object) Le(ctx context.Context, other any) (any, error) { return o.operator(ctx, "le", o, other) }
func (o *Object) Ge(ctx context.Context, other any) (any, error) { return o.operator(ctx, "ge", o, other) }

func (o *Object) And(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "and", o, other)
}

func (o *Object) Or(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "or", o, other)
}

func (o *Object) Not(ctx context.Context) (any, error) { return o.operator(ctx, "not", o) }

// Truth converts the object with the engine's logical() and reports the
// scalar result.
func (o *Object) Truth(ctx context.Context) (bool, error) {
	v, err := o.operator(ctx, "logical", o)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case NDArray:
		data, err := t.Float64s()
		if err != nil {
			return false, err
		}
		for _, f := range data {
			if f == 0 {
				return false, nil
			}
		}
		return len(data) > 0, nil
	}
	return false, unexpectedValue("logical", v)
}

func (o *Object) Plus(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "plus", o, other)
}

func (o *Object) Minus(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "minus", o, other)
}

func (o *Object) Times(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "mtimes", o, other)
}

func (o *Object) Divide(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "mrdivide", o, other)
}

func (o *Object) Power(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "mpower", o, other)
}

func (o *Object) RPlus(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "plus", other, o)
}

func (o *Object) RMinus(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "minus", other, o)
}

func (o *Object) RTimes(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "mtimes", other, o)
}

func (o *Object) RDivide(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "mrdivide", other, o)
}

func (o *Object) RPower(ctx context.Context, other any) (any, error) {
	return o.operator(ctx, "mpower", other, o)
}

func (o *Object) UPlus(ctx context.Context) (any, error)  { return o.operator(ctx, "uplus", o) }
func (o *Object) UMinus(ctx context.Context) (any, error) { return o.operator(ctx, "uminus", o) }
func (o *Object) Abs(ctx context.Context) (any, error)    { return o.operator(ctx, "abs", o) }
