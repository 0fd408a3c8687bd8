package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNumbers(t *testing.T) {
	v, err := Add(Number(2), Number(3))
	require.NoError(t, err)
	assert.Equal(t, Number(5), v)
}

func TestAddStringCoercion(t *testing.T) {
	v, err := Add(NewString("n="), Number(42))
	require.NoError(t, err)
	s, ok := v.(*String)
	require.True(t, ok)
	assert.Equal(t, "n=42", string(s.Bytes()))
}

func TestAddArrays(t *testing.T) {
	lhs := NewArray([]Value{Number(1)})
	rhs := NewArray([]Value{Number(2)})
	v, err := Add(lhs, rhs)
	require.NoError(t, err)
	arr := v.(*Array)
	assert.Equal(t, 2, arr.Len())
}

func TestAddNumberPlusArrayErrors(t *testing.T) {
	_, err := Add(Number(1), NewArray(nil))
	require.Error(t, err)
}

func TestMultiplyStringReplication(t *testing.T) {
	v, err := Multiply(NewString("ab"), Number(3))
	require.NoError(t, err)
	assert.Equal(t, "ababab", v.(*String).Display())
}

func TestMultiplyNegativeAmountErrors(t *testing.T) {
	_, err := Multiply(NewString("ab"), Number(-1))
	require.Error(t, err)
}

func TestDivideByZeroErrors(t *testing.T) {
	_, err := Divide(Number(4), Number(0))
	require.Error(t, err)
}

func TestModuloByZeroErrors(t *testing.T) {
	_, err := Modulo(Number(4), Number(0))
	require.Error(t, err)
}

func TestNotRequiresStrictBoolean(t *testing.T) {
	v, err := Not(Boolean(true))
	require.NoError(t, err)
	assert.Equal(t, Boolean(false), v)

	_, err = Not(Number(1))
	require.Error(t, err, "numbers are never truthy-coerced")
}

func TestAsBooleanRejectsNonBoolean(t *testing.T) {
	_, err := AsBoolean(Number(0))
	require.Error(t, err)

	b, err := AsBoolean(Boolean(true))
	require.NoError(t, err)
	assert.True(t, b)
}

func TestEqualIdentityAndStructural(t *testing.T) {
	assert.True(t, Equal(Number(3), Number(3)))
	assert.False(t, Equal(Number(3), Number(4)))
	assert.True(t, Equal(NewString("hi"), NewString("hi")))
	assert.False(t, Equal(NewString("hi"), NewString("bye")))
	assert.False(t, Equal(Number(1), Boolean(true)), "different kinds are never equal")
}

func TestEqualArraysStructural(t *testing.T) {
	a := NewArray([]Value{Number(1), NewString("x")})
	b := NewArray([]Value{Number(1), NewString("x")})
	assert.True(t, Equal(a, b))
}

func TestCompareRequiresSameKind(t *testing.T) {
	_, err := Compare(Number(1), NewString("1"))
	require.Error(t, err)
}

func TestCompareNumbers(t *testing.T) {
	cmp, err := Compare(Number(1), Number(2))
	require.NoError(t, err)
	assert.Less(t, cmp, 0)
}

func TestIndexOutOfBoundsIsFatal(t *testing.T) {
	arr := NewArray([]Value{Number(1), Number(2)})
	_, err := Index(arr, Number(5))
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
}

func TestIndexNegative(t *testing.T) {
	arr := NewArray([]Value{Number(10), Number(20), Number(30)})
	v, err := Index(arr, Number(-1))
	require.NoError(t, err)
	assert.Equal(t, Number(30), v)
}

func TestIndexAssignGrowsArrayWithNull(t *testing.T) {
	arr := NewArray([]Value{Number(1)})
	err := IndexAssign(arr, Number(3), NewString("hi"))
	require.NoError(t, err)
	require.Equal(t, 4, arr.Len())
	assert.Equal(t, KindNull, arr.Elements()[1].Kind())
	assert.Equal(t, KindNull, arr.Elements()[2].Kind())
	assert.Equal(t, "hi", arr.Elements()[3].(*String).Display())
}

func TestDeleteAtShiftsElements(t *testing.T) {
	arr := NewArray([]Value{Number(1), Number(2), Number(3)})
	removed, err := DeleteAt(arr, Number(1))
	require.NoError(t, err)
	assert.Equal(t, Number(2), removed)
	assert.Equal(t, 2, arr.Len())
	assert.Equal(t, Number(3), arr.Elements()[1])
}

func TestInsertAtShiftsElements(t *testing.T) {
	arr := NewArray([]Value{Number(1), Number(3)})
	err := InsertAt(arr, Number(1), Number(2))
	require.NoError(t, err)
	require.Equal(t, 3, arr.Len())
	assert.Equal(t, Number(2), arr.Elements()[1])
}

// Out-of-bounds insertion grows the array with nulls instead of
// erroring, matching index-assign's growth behavior.
func TestInsertAtBeyondEndGrowsWithNulls(t *testing.T) {
	arr := NewArray([]Value{Number(1), Number(2)})
	err := InsertAt(arr, Number(10), Number(99))
	require.NoError(t, err)
	require.Equal(t, 11, arr.Len())
	assert.Equal(t, KindNull, arr.Elements()[2].Kind())
	assert.Equal(t, KindNull, arr.Elements()[9].Kind())
	assert.Equal(t, Number(99), arr.Elements()[10])
}

func TestInsertAtNegativeOutOfBoundsErrors(t *testing.T) {
	arr := NewArray([]Value{Number(1), Number(2)})
	err := InsertAt(arr, Number(-10), Number(99))
	require.Error(t, err)
}

func TestStringInspectEscapesControlCharacters(t *testing.T) {
	s := NewString("a\nb\x01")
	assert.Equal(t, `"a\nb\x01"`, s.Inspect())
}
