package builtins

import (
	"fmt"
	"time"

	"embers/runtime"
)

// registerTime wires the `sleep` builtin, which blocks the calling
// goroutine for a whole number of seconds. It and `prompt` are the only
// built-ins that block for longer than an instant.
func registerTime(register func(name string, argc int, impl func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error))) {
	register("sleep", 1, func(vm *runtime.VM, args []runtime.Value) (runtime.Value, error) {
		seconds, ok := args[0].(runtime.Number)
		if !ok {
			return nil, fmt.Errorf("sleep requires a number, got a %s", args[0].Kind())
		}
		time.Sleep(time.Duration(seconds) * time.Second)
		return runtime.Null{}, nil
	})
}
