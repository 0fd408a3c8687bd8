package runtime

import (
	"fmt"

	"github.com/pkg/errors"
)

// RuntimeError is a script-level error: a type mismatch, an arithmetic
// fault, an out-of-bounds access, or similar. The CLI prints its message
// followed by the call-stack trace captured at the point it was raised,
// matching the "runtime error" category in the error-handling design.
type RuntimeError struct {
	Message string
	Trace   string
}

func (e *RuntimeError) Error() string { return e.Message }

func runtimeErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&RuntimeError{Message: fmt.Sprintf(format, args...)})
}

// Add implements `+`: string-coercion if either side is a string,
// otherwise both sides must share a kind (number or array), per
// value.c's add_values.
func Add(lhs, rhs Value) (Value, error) {
	if lhs.Kind() == KindString || rhs.Kind() == KindString {
		return NewString(displayForConcat(lhs) + displayForConcat(rhs)), nil
	}

	switch l := lhs.(type) {
	case Number:
		r, ok := rhs.(Number)
		if !ok {
			return nil, runtimeErrorf("can't add %s to number", rhs.Kind())
		}
		return l + r, nil

	case *Array:
		r, ok := rhs.(*Array)
		if !ok {
			return nil, runtimeErrorf("can't add %s to array", rhs.Kind())
		}
		combined := make([]Value, 0, l.Len()+r.Len())
		for _, e := range l.elements {
			combined = append(combined, e.Clone())
		}
		for _, e := range r.elements {
			combined = append(combined, e.Clone())
		}
		return NewArray(combined), nil

	default:
		return nil, runtimeErrorf("can't add values of kind %s", lhs.Kind())
	}
}

// displayForConcat renders a value for `+`-concatenation: strings
// contribute their raw bytes, every other kind uses its Display form (so
// `"n=" + 42` yields `"n=42"`).
func displayForConcat(v Value) string {
	if s, ok := v.(*String); ok {
		return string(s.bytes)
	}
	return v.Display()
}

func Subtract(lhs, rhs Value) (Value, error) {
	l, ok := lhs.(Number)
	if !ok {
		return nil, runtimeErrorf("can't subtract from a %s", lhs.Kind())
	}
	r, ok := rhs.(Number)
	if !ok {
		return nil, runtimeErrorf("can't subtract a %s", rhs.Kind())
	}
	return l - r, nil
}

// Multiply implements `*`: the RHS must always be a number. The LHS
// selects the operation: number*number is arithmetic, string*number and
// array*number replicate, per value.c's multiply_values.
func Multiply(lhs, rhs Value) (Value, error) {
	amount, ok := rhs.(Number)
	if !ok {
		return nil, runtimeErrorf("can't multiply by a %s", rhs.Kind())
	}
	if _, isNumber := lhs.(Number); !isNumber && amount < 0 {
		return nil, runtimeErrorf("can't replicate a negative number of times")
	}

	switch l := lhs.(type) {
	case Number:
		return l * amount, nil

	case *String:
		out := make([]byte, 0, l.Len()*int(amount))
		for i := int64(0); i < int64(amount); i++ {
			out = append(out, l.bytes...)
		}
		return NewString(string(out)), nil

	case *Array:
		out := make([]Value, 0, l.Len()*int(amount))
		for i := int64(0); i < int64(amount); i++ {
			for _, e := range l.elements {
				out = append(out, e.Clone())
			}
		}
		return NewArray(out), nil

	default:
		return nil, runtimeErrorf("can't multiply a %s", lhs.Kind())
	}
}

func Divide(lhs, rhs Value) (Value, error) {
	l, ok := lhs.(Number)
	if !ok {
		return nil, runtimeErrorf("can't divide a %s", lhs.Kind())
	}
	r, ok := rhs.(Number)
	if !ok {
		return nil, runtimeErrorf("can't divide by a %s", rhs.Kind())
	}
	if r == 0 {
		return nil, runtimeErrorf("division by zero")
	}
	return l / r, nil
}

func Modulo(lhs, rhs Value) (Value, error) {
	l, ok := lhs.(Number)
	if !ok {
		return nil, runtimeErrorf("can't modulo a %s", lhs.Kind())
	}
	r, ok := rhs.(Number)
	if !ok {
		return nil, runtimeErrorf("can't modulo by a %s", rhs.Kind())
	}
	if r == 0 {
		return nil, runtimeErrorf("modulo by zero")
	}
	return l % r, nil
}

func Negate(v Value) (Value, error) {
	n, ok := v.(Number)
	if !ok {
		return nil, runtimeErrorf("can only negate numbers, not %s", v.Kind())
	}
	return -n, nil
}

// Not implements `!`. Unlike many scripting languages, conditions here are
// not truthy-coerced: the operand must literally be a boolean, matching
// value.c's not_value (built on the strict as_boolean assertion).
func Not(v Value) (Value, error) {
	b, ok := v.(Boolean)
	if !ok {
		return nil, runtimeErrorf("can only not booleans, not %s", v.Kind())
	}
	return !b, nil
}

// AsBoolean extracts a strict boolean from v, used for `if`/`while`
// conditions and the operands of `&&`/`||`. Conditions are never
// truthy-coerced, matching value.h's as_boolean.
func AsBoolean(v Value) (bool, error) {
	b, ok := v.(Boolean)
	if !ok {
		return false, runtimeErrorf("expected a boolean condition, not %s", v.Kind())
	}
	return bool(b), nil
}

// Equal implements `==`: identity first (covers numbers/booleans/null and
// reference identity for heap kinds), then structural comparison for
// strings and arrays only. Differing kinds are never equal. Matches
// value.c's equate_values.
func Equal(lhs, rhs Value) bool {
	if sameIdentity(lhs, rhs) {
		return true
	}
	if lhs.Kind() != rhs.Kind() {
		return false
	}

	switch l := lhs.(type) {
	case *String:
		r := rhs.(*String)
		return string(l.bytes) == string(r.bytes)

	case *Array:
		r := rhs.(*Array)
		if l.Len() != r.Len() {
			return false
		}
		for i := range l.elements {
			if !Equal(l.elements[i], r.elements[i]) {
				return false
			}
		}
		return true

	default:
		return false
	}
}

func sameIdentity(lhs, rhs Value) bool {
	switch l := lhs.(type) {
	case Boolean:
		r, ok := rhs.(Boolean)
		return ok && l == r
	case Null:
		_, ok := rhs.(Null)
		return ok
	case Number:
		r, ok := rhs.(Number)
		return ok && l == r
	case *String:
		r, ok := rhs.(*String)
		return ok && l == r
	case *Array:
		r, ok := rhs.(*Array)
		return ok && l == r
	case *Function:
		r, ok := rhs.(*Function)
		return ok && l == r
	case *BuiltinFunction:
		r, ok := rhs.(*BuiltinFunction)
		return ok && l == r
	default:
		return false
	}
}

// Compare implements the four ordering operators. Both sides must share a
// kind, and only number/string/array support ordering, per value.c's
// compare_values.
func Compare(lhs, rhs Value) (int, error) {
	if lhs.Kind() != rhs.Kind() {
		return 0, runtimeErrorf("can't compare a %s to a %s", lhs.Kind(), rhs.Kind())
	}

	switch l := lhs.(type) {
	case Number:
		r := rhs.(Number)
		switch {
		case l < r:
			return -1, nil
		case l > r:
			return 1, nil
		default:
			return 0, nil
		}

	case *String:
		r := rhs.(*String)
		return compareBytes(l.bytes, r.bytes), nil

	case *Array:
		r := rhs.(*Array)
		for i := 0; i < l.Len() && i < r.Len(); i++ {
			cmp, err := Compare(l.elements[i], r.elements[i])
			if err != nil {
				return 0, err
			}
			if cmp != 0 {
				return cmp, nil
			}
		}
		return l.Len() - r.Len(), nil

	default:
		return 0, runtimeErrorf("can't compare values of kind %s", lhs.Kind())
	}
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// Index implements `source[index]`, supporting negative indices that count
// from the end. Out-of-bounds reads are a fatal runtime error, matching
// value.c's index_value (which calls die_with_stacktrace on OOB rather
// than returning a soft null).
func Index(source, index Value) (Value, error) {
	idx, ok := index.(Number)
	if !ok {
		return nil, runtimeErrorf("can't index with a %s", index.Kind())
	}

	switch s := source.(type) {
	case *Array:
		i := normalizeIndex(int64(idx), s.Len())
		if i < 0 || i >= s.Len() {
			return nil, runtimeErrorf("index %d out of bounds for array of length %d", int64(idx), s.Len())
		}
		return s.elements[i].Clone(), nil

	case *String:
		i := normalizeIndex(int64(idx), s.Len())
		if i < 0 || i >= s.Len() {
			return nil, runtimeErrorf("index %d out of bounds for string of length %d", int64(idx), s.Len())
		}
		return NewString(string(s.bytes[i : i+1])), nil

	default:
		return nil, runtimeErrorf("can only index into arrays or strings, not %s", source.Kind())
	}
}

func normalizeIndex(idx int64, length int) int {
	if idx < 0 {
		idx += int64(length)
	}
	return int(idx)
}

// IndexAssign implements `source[index] = value`, extending arrays with
// `null` as needed when the index lands past the current end, per
// array.c's index_assign_array. Strings are immutable and cannot be
// index-assigned.
func IndexAssign(source, index, value Value) error {
	idx, ok := index.(Number)
	if !ok {
		return runtimeErrorf("can't index-assign with a %s", index.Kind())
	}

	arr, ok := source.(*Array)
	if !ok {
		return runtimeErrorf("can't index-assign into a %s", source.Kind())
	}

	i := normalizeIndex(int64(idx), arr.Len())
	if i < 0 {
		return runtimeErrorf("index-assign index out of bounds")
	}

	for i >= arr.Len() {
		arr.elements = append(arr.elements, Null{})
	}
	arr.elements[i].Free()
	arr.elements[i] = value
	return nil
}

// DeleteAt removes and returns the element at an (possibly negative)
// index, shifting subsequent elements left, per array.c's delete_at_array.
func DeleteAt(source Value, index Value) (Value, error) {
	arr, ok := source.(*Array)
	if !ok {
		return nil, runtimeErrorf("can't delete from a %s", source.Kind())
	}
	idx, ok := index.(Number)
	if !ok {
		return nil, runtimeErrorf("can't delete with a %s index", index.Kind())
	}

	i := normalizeIndex(int64(idx), arr.Len())
	if i < 0 || i >= arr.Len() {
		return Null{}, nil
	}

	removed := arr.elements[i]
	arr.elements = append(arr.elements[:i], arr.elements[i+1:]...)
	return removed, nil
}

// InsertAt inserts value at an (possibly negative) index, shifting
// subsequent elements right, per array.c's insert_at_array.
func InsertAt(source Value, index Value, value Value) error {
	arr, ok := source.(*Array)
	if !ok {
		return runtimeErrorf("can't insert into a %s", source.Kind())
	}
	idx, ok := index.(Number)
	if !ok {
		return runtimeErrorf("can't insert with a %s index", index.Kind())
	}

	i := normalizeIndex(int64(idx), arr.Len())
	if i < 0 {
		return runtimeErrorf("insert index out of bounds")
	}

	// Insertion out of bounds is identical to index-assigning out of
	// bounds: pad with nulls up to i rather than failing.
	for i > arr.Len() {
		arr.elements = append(arr.elements, Null{})
	}

	arr.elements = append(arr.elements, nil)
	copy(arr.elements[i+1:], arr.elements[i:])
	arr.elements[i] = value
	return nil
}
