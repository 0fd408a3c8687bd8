package runtime

import (
	"fmt"
)

// VM executes compiled CodeBlocks. It owns the globals table and the
// call-stack diagnostic environment; both are shared across every call
// made during a program's execution.
type VM struct {
	Globals     *Globals
	Environment *Environment
}

// NewVM returns a VM over the given globals table with a fresh call-stack
// environment.
func NewVM(globals *Globals) *VM {
	return &VM{Globals: globals, Environment: NewEnvironment()}
}

// frame is one call's private, per-instruction-pointer execution state: a
// fixed-size locals array (slot 0 reserved for the return value) and an
// instruction pointer into the block's code.
type frame struct {
	block *CodeBlock
	ip    int
	locals []Value
}

func (f *frame) nextCount() int {
	c := f.block.Code[f.ip]
	f.ip++
	return c
}

func (f *frame) nextOpcode() OpCode {
	op := OpCode(f.block.Code[f.ip])
	f.ip++
	return op
}

// nextLocal reads the local named by the next code word, cloning it —
// matching codeblock.c's next_local. It never consumes the slot itself.
func (f *frame) nextLocal() Value {
	idx := f.nextCount()
	v := f.locals[idx]
	if v.Kind() == kindUndefined {
		panic(fmt.Sprintf("read from unset local %d", idx))
	}
	return v.Clone()
}

// setNextLocal writes val into the local named by the next code word,
// freeing whatever was previously stored there — matching codeblock.c's
// set_next_local.
func (f *frame) setNextLocal(val Value) {
	idx := f.nextCount()
	if f.locals[idx].Kind() != kindUndefined {
		f.locals[idx].Free()
	}
	f.locals[idx] = val
}

// CallValue dispatches a call to either a user-defined or builtin
// function, pushing a diagnostic stack frame around user-defined calls so
// a runtime error deep in the call graph can report where it happened.
func (vm *VM) CallValue(callee Value, args []Value) (Value, error) {
	switch fn := callee.(type) {
	case *Function:
		if len(args) != fn.ArgumentCount {
			return nil, runtimeErrorf("function %s requires %d arguments, got %d", fn.Name, fn.ArgumentCount, len(args))
		}
		if err := vm.Environment.Enter(StackFrame{Filename: fn.SourceFilename, Function: fn.Name, Line: fn.SourceLine}); err != nil {
			return nil, err
		}
		result, err := vm.runCodeBlock(fn.Block, args)
		captureTrace(err, vm.Environment)
		vm.Environment.Leave()
		return result, err

	case *BuiltinFunction:
		if len(args) != fn.RequiredArgCount {
			return nil, runtimeErrorf("builtin function %s requires %d arguments, got %d", fn.Name, fn.RequiredArgCount, len(args))
		}
		return fn.Impl(vm, args)

	default:
		return nil, runtimeErrorf("cannot call a value of kind %s", callee.Kind())
	}
}

// runCodeBlock runs one function body to completion, returning its return
// value. Matches codeblock.c's run_codeblock: arguments are cloned into
// locals[1..N], every local but the return slot is freed once execution
// finishes.
func (vm *VM) runCodeBlock(block *CodeBlock, args []Value) (_ Value, err error) {
	locals := make([]Value, block.NumberOfLocals)
	for i := range locals {
		locals[i] = Undefined
	}
	for i, a := range args {
		locals[i+1] = a.Clone()
	}

	f := &frame{block: block, locals: locals}

	defer func() {
		for i := 1; i < len(locals); i++ {
			if locals[i].Kind() != kindUndefined {
				locals[i].Free()
			}
		}
	}()

	if runErr := vm.run(f); runErr != nil {
		return nil, runErr
	}

	return locals[CodeBlockReturnLocal], nil
}

func (vm *VM) run(f *frame) error {
	for f.ip < len(f.block.Code) {
		op := f.nextOpcode()
		Log.Debugf("vm[%3d] = op(%s)", f.ip-1, op)

		switch op {
		case OpMove:
			f.setNextLocal(f.nextLocal())

		case OpArrayLiteral:
			count := f.nextCount()
			elements := make([]Value, count)
			for i := 0; i < count; i++ {
				elements[i] = f.nextLocal()
			}
			f.setNextLocal(NewArray(elements))

		case OpLoadConstant:
			f.setNextLocal(f.block.Constants[f.nextCount()].Clone())

		case OpLoadGlobalVariable:
			idx := f.nextCount()
			f.setNextLocal(vm.Globals.Fetch(idx))

		case OpStoreGlobalVariable:
			idx := f.nextCount()
			val := f.nextLocal()
			vm.Globals.Assign(idx, val.Clone())
			f.setNextLocal(val)

		case OpJumpIfTrue:
			cond := f.nextLocal()
			target := f.nextCount()
			b, err := AsBoolean(cond)
			cond.Free()
			if err != nil {
				return err
			}
			if b {
				f.ip = target
			}

		case OpJumpIfFalse:
			cond := f.nextLocal()
			target := f.nextCount()
			b, err := AsBoolean(cond)
			cond.Free()
			if err != nil {
				return err
			}
			if !b {
				f.ip = target
			}

		case OpJump:
			f.ip = f.nextCount()

		case OpCall:
			function := f.nextLocal()
			argCount := f.nextCount()
			args := make([]Value, argCount)
			for i := 0; i < argCount; i++ {
				args[i] = f.nextLocal()
			}

			result, err := vm.CallValue(function, args)
			for _, a := range args {
				a.Free()
			}
			if err != nil {
				return err
			}
			f.setNextLocal(result)

		case OpReturn:
			f.ip = len(f.block.Code) // run off the end; locals[0] holds the result.
			return nil

		case OpNot:
			arg := f.nextLocal()
			result, err := Not(arg)
			arg.Free()
			if err != nil {
				return err
			}
			f.setNextLocal(result)

		case OpNegate:
			arg := f.nextLocal()
			result, err := Negate(arg)
			arg.Free()
			if err != nil {
				return err
			}
			f.setNextLocal(result)

		case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
			lhs := f.nextLocal()
			rhs := f.nextLocal()
			result, err := applyArith(op, lhs, rhs)
			lhs.Free()
			rhs.Free()
			if err != nil {
				return err
			}
			f.setNextLocal(result)

		case OpEqual, OpNotEqual:
			lhs := f.nextLocal()
			rhs := f.nextLocal()
			eq := Equal(lhs, rhs)
			lhs.Free()
			rhs.Free()
			if op == OpNotEqual {
				eq = !eq
			}
			f.setNextLocal(Boolean(eq))

		case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
			lhs := f.nextLocal()
			rhs := f.nextLocal()
			cmp, err := Compare(lhs, rhs)
			lhs.Free()
			rhs.Free()
			if err != nil {
				return err
			}
			f.setNextLocal(Boolean(compareMatches(op, cmp)))

		case OpIndex:
			source := f.nextLocal()
			index := f.nextLocal()
			result, err := Index(source, index)
			source.Free()
			index.Free()
			if err != nil {
				return err
			}
			f.setNextLocal(result)

		case OpIndexAssign:
			source := f.nextLocal()
			index := f.nextLocal()
			val := f.nextLocal()
			err := IndexAssign(source, index, val.Clone())
			source.Free()
			index.Free()
			if err != nil {
				val.Free()
				return err
			}
			f.setNextLocal(val)

		default:
			return fmt.Errorf("unknown opcode %d", op)
		}
	}
	return nil
}

func applyArith(op OpCode, lhs, rhs Value) (Value, error) {
	switch op {
	case OpAdd:
		return Add(lhs, rhs)
	case OpSubtract:
		return Subtract(lhs, rhs)
	case OpMultiply:
		return Multiply(lhs, rhs)
	case OpDivide:
		return Divide(lhs, rhs)
	default: // OpModulo
		return Modulo(lhs, rhs)
	}
}

func compareMatches(op OpCode, cmp int) bool {
	switch op {
	case OpLessThan:
		return cmp < 0
	case OpLessThanOrEqual:
		return cmp <= 0
	case OpGreaterThan:
		return cmp > 0
	default: // OpGreaterThanOrEqual
		return cmp >= 0
	}
}
