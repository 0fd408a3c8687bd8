// Package builtins registers the language's built-in global functions —
// I/O, array mutation, and introspection — into a runtime.Globals table.
// Grounded on original_source/src/builtin_function.c's function table,
// renamed from the themed names to plain, descriptive ones, and on the
// teacher repo's libraries/ package for how native functions are wired
// into the global namespace.
package builtins

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"

	"embers/runtime"
)

// Register installs every built-in function into globals, writing
// `print`/`println`/`dump` output to stdout and reading `prompt` input
// from stdin.
func Register(globals *runtime.Globals, stdout io.Writer, stdin io.Reader) {
	reader := bufio.NewReader(stdin)

	register := func(name string, argc int, impl func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error)) {
		idx := globals.Declare(name)
		globals.Assign(idx, runtime.NewBuiltinFunction(name, argc, impl))
	}

	register("print", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		fmt.Fprint(stdout, displayArg(args[0]))
		return runtime.Null{}, nil
	})

	register("println", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		fmt.Fprintln(stdout, displayArg(args[0]))
		return runtime.Null{}, nil
	})

	register("dump", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		fmt.Fprintln(stdout, args[0].Inspect())
		return args[0].Clone(), nil
	})

	register("len", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		switch v := args[0].(type) {
		case *runtime.String:
			return runtime.Number(v.Len()), nil
		case *runtime.Array:
			return runtime.Number(v.Len()), nil
		default:
			return nil, fmt.Errorf("can't take the length of a %s", v.Kind())
		}
	})

	register("typeof", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		return runtime.NewString(args[0].Kind().String()), nil
	})

	register("delete", 2, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		return runtime.DeleteAt(args[0], args[1])
	})

	register("insert", 3, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		if err := runtime.InsertAt(args[0], args[1], args[2].Clone()); err != nil {
			return nil, err
		}
		return args[0].Clone(), nil
	})

	register("to_number", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		switch v := args[0].(type) {
		case runtime.Number:
			return v, nil
		case *runtime.String:
			return runtime.Number(parseLeadingNumber(v.Bytes())), nil
		default:
			return nil, fmt.Errorf("can't convert a %s to a number", v.Kind())
		}
	})

	register("random", 0, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		return runtime.Number(rand.Int63()), nil
	})

	register("exit", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		n, ok := args[0].(runtime.Number)
		if !ok {
			return nil, fmt.Errorf("exit requires a number, got a %s", args[0].Kind())
		}
		os.Exit(int(n))
		return runtime.Null{}, nil
	})

	register("prompt", 0, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return runtime.Null{}, nil
		}
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}
		return runtime.NewString(line), nil
	})

	registerMath(register)
	registerTime(register)
}

func displayArg(v runtime.Value) string {
	if s, ok := v.(*runtime.String); ok {
		return string(s.Bytes())
	}
	return v.Display()
}

// parseLeadingNumber parses an optional sign followed by digits, ignoring
// trailing garbage, returning 0 if nothing parses — matching
// original_source/src/number.c's string_to_number.
func parseLeadingNumber(b []byte) int64 {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}

	negative := false
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		negative = b[i] == '-'
		i++
	}

	var n int64
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		n = n*10 + int64(b[i]-'0')
		i++
	}

	if negative {
		n = -n
	}
	return n
}
