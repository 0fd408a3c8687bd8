package runtime

import "fmt"

// FormatError renders err for the CLI's error-reporting path. Runtime
// errors are followed by the call-stack trace captured at the moment they
// were raised (per the error-handling design); syntax and compile errors
// are not, since they occur before any call stack exists.
func FormatError(err error) string {
	var rerr *RuntimeError
	if asRuntimeError(err, &rerr) {
		trace := rerr.Trace
		if trace == "" {
			return fmt.Sprintf("runtime error: %s", rerr.Message)
		}
		return fmt.Sprintf("runtime error: %s\n%s", rerr.Message, trace)
	}
	return err.Error()
}

// captureTrace snapshots the current call stack into err's *RuntimeError,
// if it holds one and hasn't already been captured. CallValue calls this
// immediately after a call returns, before popping its own frame — by the
// time an error reaches the CLI every frame along the way has already
// unwound, so the trace must be taken at the point of failure rather than
// at the point of reporting.
func captureTrace(err error, env *Environment) {
	var rerr *RuntimeError
	if asRuntimeError(err, &rerr) && rerr.Trace == "" {
		rerr.Trace = env.Trace()
	}
}

// asRuntimeError walks err's cause chain (pkg/errors wraps with
// WithStack) looking for a *RuntimeError.
func asRuntimeError(err error, out **RuntimeError) bool {
	type causer interface{ Cause() error }

	for err != nil {
		if rerr, ok := err.(*RuntimeError); ok {
			*out = rerr
			return true
		}
		c, ok := err.(causer)
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}
