package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentEnterLeave(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.Enter(StackFrame{Filename: "a.em", Function: "f", Line: 3}))
	assert.Equal(t, 1, env.Depth())
	env.Leave()
	assert.Equal(t, 0, env.Depth())
}

func TestEnvironmentOverflow(t *testing.T) {
	env := NewEnvironment()
	env.SetStackFrameLimit(2)
	require.NoError(t, env.Enter(StackFrame{Function: "a"}))
	require.NoError(t, env.Enter(StackFrame{Function: "b"}))

	err := env.Enter(StackFrame{Function: "c"})
	require.Error(t, err)
	var overflow *StackOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, 2, overflow.Limit)
}

func TestEnvironmentTraceFormat(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.Enter(StackFrame{Filename: "main.em", Function: "main", Line: 1}))
	require.NoError(t, env.Enter(StackFrame{Filename: "main.em", Function: "a", Line: 5}))

	trace := env.Trace()
	assert.Contains(t, trace, "0: main.em:1 in main")
	assert.Contains(t, trace, "1: main.em:5 in a")
}
