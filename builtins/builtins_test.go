package builtins

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embers/runtime"
)

func setup(t *testing.T, stdin string) (*runtime.Globals, *runtime.VM, *bytes.Buffer) {
	t.Helper()
	globals := runtime.NewGlobals()
	stdout := &bytes.Buffer{}
	Register(globals, stdout, strings.NewReader(stdin))
	return globals, runtime.NewVM(globals), stdout
}

func call(t *testing.T, globals *runtime.Globals, vm *runtime.VM, name string, args ...runtime.Value) (runtime.Value, error) {
	t.Helper()
	idx := globals.Lookup(name)
	require.NotEqual(t, runtime.GlobalDoesNotExist, idx, "builtin %s must be registered", name)
	fn := globals.Fetch(idx)
	return vm.CallValue(fn, args)
}

func TestPrintWritesDisplayFormNotQuoted(t *testing.T) {
	globals, vm, stdout := setup(t, "")
	result, err := call(t, globals, vm, "print", runtime.NewString("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", stdout.String())
	assert.Equal(t, runtime.Null{}, result, "print returns null, not its argument")
}

func TestPrintlnAddsNewline(t *testing.T) {
	globals, vm, stdout := setup(t, "")
	result, err := call(t, globals, vm, "println", runtime.Number(5))
	require.NoError(t, err)
	assert.Equal(t, "5\n", stdout.String())
	assert.Equal(t, runtime.Null{}, result, "println returns null, not its argument")
}

func TestDumpUsesInspectForm(t *testing.T) {
	globals, vm, stdout := setup(t, "")
	result, err := call(t, globals, vm, "dump", runtime.NewString("hi"))
	require.NoError(t, err)
	assert.Equal(t, "\"hi\"\n", stdout.String())
	assert.Equal(t, "hi", result.(*runtime.String).Display(), "dump returns a clone of its argument")
}

func TestLenOnStringAndArray(t *testing.T) {
	globals, vm, _ := setup(t, "")
	v, err := call(t, globals, vm, "len", runtime.NewString("hello"))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(5), v)

	v, err = call(t, globals, vm, "len", runtime.NewArray([]runtime.Value{runtime.Number(1), runtime.Number(2)}))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(2), v)
}

func TestLenOnNumberErrors(t *testing.T) {
	globals, vm, _ := setup(t, "")
	_, err := call(t, globals, vm, "len", runtime.Number(5))
	require.Error(t, err)
}

func TestTypeofReportsKindName(t *testing.T) {
	globals, vm, _ := setup(t, "")
	v, err := call(t, globals, vm, "typeof", runtime.Boolean(true))
	require.NoError(t, err)
	assert.Equal(t, "boolean", v.(*runtime.String).Display())
}

func TestDeleteAndInsertBuiltins(t *testing.T) {
	globals, vm, _ := setup(t, "")
	arr := runtime.NewArray([]runtime.Value{runtime.Number(1), runtime.Number(2), runtime.Number(3)})

	removed, err := call(t, globals, vm, "delete", arr, runtime.Number(1))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(2), removed)
	assert.Equal(t, 2, arr.Len())

	_, err = call(t, globals, vm, "insert", arr, runtime.Number(1), runtime.Number(99))
	require.NoError(t, err)
	assert.Equal(t, 3, arr.Len())
	assert.Equal(t, runtime.Number(99), arr.Elements()[1])
}

func TestInsertPastEndGrowsArray(t *testing.T) {
	globals, vm, _ := setup(t, "")
	arr := runtime.NewArray([]runtime.Value{runtime.Number(1), runtime.Number(2)})

	_, err := call(t, globals, vm, "insert", arr, runtime.Number(5), runtime.Number(7))
	require.NoError(t, err)
	assert.Equal(t, 6, arr.Len())
	assert.Equal(t, runtime.Number(7), arr.Elements()[5])
}

func TestToNumberParsesLeadingDigits(t *testing.T) {
	globals, vm, _ := setup(t, "")
	v, err := call(t, globals, vm, "to_number", runtime.NewString("  -42abc"))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(-42), v)
}

func TestToNumberOnNumberIsIdentity(t *testing.T) {
	globals, vm, _ := setup(t, "")
	v, err := call(t, globals, vm, "to_number", runtime.Number(7))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(7), v)
}

func TestPromptReadsOneLineAndStripsNewline(t *testing.T) {
	globals, vm, _ := setup(t, "hello world\nsecond line\n")
	v, err := call(t, globals, vm, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", v.(*runtime.String).Display())
}

func TestMathBuiltins(t *testing.T) {
	globals, vm, _ := setup(t, "")

	v, err := call(t, globals, vm, "sqrt", runtime.Number(9))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(3), v)

	v, err = call(t, globals, vm, "pow", runtime.Number(2), runtime.Number(10))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(1024), v)

	v, err = call(t, globals, vm, "abs", runtime.Number(-7))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(7), v)

	v, err = call(t, globals, vm, "floor", runtime.Number(5))
	require.NoError(t, err)
	assert.Equal(t, runtime.Number(5), v)
}

func TestSleepAcceptsZeroDuration(t *testing.T) {
	globals, vm, _ := setup(t, "")
	_, err := call(t, globals, vm, "sleep", runtime.Number(0))
	require.NoError(t, err)
}

func TestSleepRejectsNonNumber(t *testing.T) {
	globals, vm, _ := setup(t, "")
	_, err := call(t, globals, vm, "sleep", runtime.NewString("nope"))
	require.Error(t, err)
}
