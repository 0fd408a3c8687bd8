package builtins

import (
	"fmt"
	"math"

	"embers/runtime"
)

// registerMath wires up the numeric builtins against the standard
// library's math package. No example repo in the retrieval pack ships a
// numeric library that improves on this — trig/exponential functions are
// squarely stdlib territory — so these are intentionally grounded on
// `math` rather than a third-party dependency (see DESIGN.md).
//
// Values are 64-bit integers (runtime.Number), so every result here is
// truncated back to an integer; scripts needing fractional precision are
// out of scope, matching original_source's integer-only number type.
func registerMath(register func(name string, argc int, impl func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error))) {
	unary := func(name string, f func(float64) float64) {
		register(name, 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
			n, ok := args[0].(runtime.Number)
			if !ok {
				return nil, fmt.Errorf("%s requires a number, got a %s", name, args[0].Kind())
			}
			return runtime.Number(int64(f(float64(n)))), nil
		})
	}

	unary("sqrt", math.Sqrt)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("log", math.Log)
	unary("exp", math.Exp)
	unary("abs", math.Abs)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)

	register("pow", 2, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		base, ok := args[0].(runtime.Number)
		if !ok {
			return nil, fmt.Errorf("pow requires numbers, got a %s", args[0].Kind())
		}
		exp, ok := args[1].(runtime.Number)
		if !ok {
			return nil, fmt.Errorf("pow requires numbers, got a %s", args[1].Kind())
		}
		return runtime.Number(int64(math.Pow(float64(base), float64(exp)))), nil
	})
}
