package vm

import "github.com/machine-dialect/mdc/pkg/value"

// looseEqual implements Eq (§4.6): numeric values compare by mathematical
// value regardless of Integer/Float tag; otherwise it is strictEqual. Only
// scalars (Text, URL, Yes/No, Empty) compare by content: a List or
// Dictionary is never equal to anything, not even to itself.
func looseEqual(a, b value.Value) (bool, error) {
	if af, aok := value.AsFloat(a); aok {
		if bf, bok := value.AsFloat(b); bok {
			return af == bf, nil
		}
	}
	return strictEqual(a, b)
}

// strictEqual implements StrictEq (§4.6): tag-sensitive equality — an
// Integer and a Float holding the same mathematical value are not
// StrictEq, and Boolean/Empty compare by the interned singleton's identity.
func strictEqual(a, b value.Value) (bool, error) {
	switch x := a.(type) {
	case *value.Integer:
		y, ok := b.(*value.Integer)
		return ok && x.Value == y.Value, nil
	case *value.Float:
		y, ok := b.(*value.Float)
		return ok && x.Value == y.Value, nil
	case *value.String:
		y, ok := b.(*value.String)
		return ok && x.Value == y.Value, nil
	case *value.URL:
		y, ok := b.(*value.URL)
		return ok && x.Value == y.Value, nil
	case *value.Boolean:
		return a == b, nil
	default:
		if a == value.EmptyValue {
			return b == value.EmptyValue, nil
		}
		return false, nil
	}
}

// compare implements Lt/Le/Gt/Ge (§4.6, OQ3): defined only between two
// numerics (compared by value, with Integer/Float coercion) or two Text
// values (compared by codepoint order); any other pairing is a
// TypeMismatch.
func compare(a, b value.Value) (int, error) {
	if af, aok := value.AsFloat(a); aok {
		if bf, bok := value.AsFloat(b); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	as, aok := stringOf(a)
	bs, bok := stringOf(b)
	if aok && bok {
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, newError(TypeMismatch, "cannot compare %s and %s", a.TypeName(), b.TypeName())
}

func stringOf(v value.Value) (string, bool) {
	switch x := v.(type) {
	case *value.String:
		return x.Value, true
	case *value.URL:
		return x.Value, true
	default:
		return "", false
	}
}

func add(a, b value.Value) (value.Value, error) {
	if af, aok := value.AsFloat(a); aok {
		if bf, bok := value.AsFloat(b); bok {
			if _, aIsFloat := a.(*value.Float); aIsFloat {
				return value.NewFloat(af + bf), nil
			}
			if _, bIsFloat := b.(*value.Float); bIsFloat {
				return value.NewFloat(af + bf), nil
			}
			ai := a.(*value.Integer)
			bi := b.(*value.Integer)
			return value.NewInteger(ai.Value + bi.Value), nil
		}
	}
	return nil, newError(TypeMismatch, "cannot add %s and %s", a.TypeName(), b.TypeName())
}

func arith(op string, a, b value.Value) (value.Value, error) {
	af, aok := value.AsFloat(a)
	bf, bok := value.AsFloat(b)
	if !aok || !bok {
		return nil, newError(TypeMismatch, "cannot apply %s to %s and %s", op, a.TypeName(), b.TypeName())
	}
	_, aFloat := a.(*value.Float)
	_, bFloat := b.(*value.Float)
	isFloat := aFloat || bFloat
	if !isFloat && op != "/" {
		// Integer-only - and * stay in int64 so overflow wraps (OQ1).
		ai, bi := a.(*value.Integer).Value, b.(*value.Integer).Value
		if op == "-" {
			return value.NewInteger(ai - bi), nil
		}
		return value.NewInteger(ai * bi), nil
	}

	var result float64
	switch op {
	case "-":
		result = af - bf
	case "*":
		result = af * bf
	case "/":
		if bf == 0 {
			return nil, newError(DivisionByZero, "division by zero")
		}
		result = af / bf
		isFloat = true
	}
	if isFloat {
		return value.NewFloat(result), nil
	}
	return value.NewInteger(int64(result)), nil
}

func negate(v value.Value) (value.Value, error) {
	switch x := v.(type) {
	case *value.Integer:
		return value.NewInteger(-x.Value), nil
	case *value.Float:
		return value.NewFloat(-x.Value), nil
	default:
		return nil, newError(TypeMismatch, "cannot negate %s", v.TypeName())
	}
}

func logicalNot(v value.Value) value.Value {
	return value.Bool(!value.IsTruthy(v))
}

func indexInto(coll, idx value.Value) (value.Value, error) {
	switch c := coll.(type) {
	case *value.List:
		i, ok := idx.(*value.Integer)
		if !ok {
			return nil, newError(TypeMismatch, "list index must be a Whole Number, got %s", idx.TypeName())
		}
		if i.Value < 1 || int(i.Value) > len(c.Elements) {
			return nil, newError(IndexOutOfRange, "index %d out of range for list of length %d (valid range is [1, %d])", i.Value, len(c.Elements), len(c.Elements))
		}
		return c.Elements[i.Value-1], nil
	case *value.Dictionary:
		key, ok := stringOf(idx)
		if !ok {
			return nil, newError(TypeMismatch, "dictionary key must be Text, got %s", idx.TypeName())
		}
		v, ok := c.Get(key)
		if !ok {
			return nil, newError(KeyNotFound, "key %q not found", key)
		}
		return v, nil
	default:
		return nil, newError(TypeMismatch, "cannot index into %s", coll.TypeName())
	}
}

// setIndex implements ListSet/DictSet (§4.2's Data group): for a List,
// Index is a 1-based position that must already exist; for a Dictionary,
// Index is a Text key that is inserted if absent, matching Dictionary.Set.
func setIndex(coll, idx, v value.Value) error {
	switch c := coll.(type) {
	case *value.List:
		i, ok := idx.(*value.Integer)
		if !ok {
			return newError(TypeMismatch, "list index must be a Whole Number, got %s", idx.TypeName())
		}
		if i.Value < 1 || int(i.Value) > len(c.Elements) {
			return newError(IndexOutOfRange, "index %d out of range for list of length %d (valid range is [1, %d])", i.Value, len(c.Elements), len(c.Elements))
		}
		c.Elements[i.Value-1] = v
		return nil
	case *value.Dictionary:
		key, ok := stringOf(idx)
		if !ok {
			return newError(TypeMismatch, "dictionary key must be Text, got %s", idx.TypeName())
		}
		c.Set(key, v)
		return nil
	default:
		return newError(TypeMismatch, "cannot set an index of %s", coll.TypeName())
	}
}

// appendToList implements ListAppend (`Add Value to List`).
func appendToList(coll, v value.Value) error {
	l, ok := coll.(*value.List)
	if !ok {
		return newError(TypeMismatch, "cannot append to %s", coll.TypeName())
	}
	l.Elements = append(l.Elements, v)
	return nil
}

// insertIntoList implements ListInsert (`Insert Value at position Position
// in List`): Position is 1-based and may equal length+1 to insert at the
// end, one past indexInto's read range.
func insertIntoList(coll, pos, v value.Value) error {
	l, ok := coll.(*value.List)
	if !ok {
		return newError(TypeMismatch, "cannot insert into %s", coll.TypeName())
	}
	i, ok := pos.(*value.Integer)
	if !ok {
		return newError(TypeMismatch, "list position must be a Whole Number, got %s", pos.TypeName())
	}
	if i.Value < 1 || int(i.Value) > len(l.Elements)+1 {
		return newError(IndexOutOfRange, "position %d out of range for list of length %d (valid range is [1, %d])", i.Value, len(l.Elements), len(l.Elements)+1)
	}
	idx := int(i.Value - 1)
	l.Elements = append(l.Elements, nil)
	copy(l.Elements[idx+1:], l.Elements[idx:])
	l.Elements[idx] = v
	return nil
}

// removeFromList implements ListRemove (`Remove Value from List`): the
// first element loosely equal to Value is removed; NotFound (§7) is raised
// when no such element exists.
func removeFromList(coll, v value.Value) error {
	l, ok := coll.(*value.List)
	if !ok {
		return newError(TypeMismatch, "cannot remove from %s", coll.TypeName())
	}
	for i, e := range l.Elements {
		eq, err := looseEqual(e, v)
		if err != nil {
			return err
		}
		if eq {
			l.Elements = append(l.Elements[:i], l.Elements[i+1:]...)
			return nil
		}
	}
	return newError(NotFound, "no element equal to %s found in list", v.Inspect())
}

func lengthOf(coll value.Value) (value.Value, error) {
	switch c := coll.(type) {
	case *value.List:
		return value.NewInteger(int64(len(c.Elements))), nil
	case *value.Dictionary:
		return value.NewInteger(int64(len(c.Keys()))), nil
	default:
		return nil, newError(TypeMismatch, "cannot take the length of %s", coll.TypeName())
	}
}
