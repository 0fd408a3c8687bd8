// Command embers compiles and runs a single script: either inline via
// -e/--eval or from a file via -f/--file, then calls its `main` function
// and exits with its numeric return value.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"embers/builtins"
	"embers/runtime"
)

var (
	evalSource string
	filePath   string
	debug      bool
	stackLimit int
)

func main() {
	root := &cobra.Command{
		Use:           "embers",
		Short:         "Run a script written in the embers language",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().StringVarP(&evalSource, "eval", "e", "", "evaluate the given source string")
	root.Flags().StringVarP(&filePath, "file", "f", "", "evaluate the given source file")
	root.Flags().BoolVar(&debug, "debug", false, "trace compiler and VM execution to stderr")
	root.Flags().IntVar(&stackLimit, "stack-limit", runtime.DefaultStackFrameLimit, "maximum call-stack depth")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if (evalSource == "") == (filePath == "") {
		return fmt.Errorf("usage: embers (-e <source> | -f <path>)")
	}

	if debug {
		runtime.Log.SetLevel(logrus.DebugLevel)
		runtime.Log.SetOutput(os.Stderr)
	}

	filename := filePath
	source := evalSource
	if filePath != "" {
		contents, err := os.ReadFile(filePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "couldn't read %s: %s\n", filePath, err)
			os.Exit(1)
		}
		source = string(contents)
	} else {
		filename = "<eval>"
	}

	globals := runtime.NewGlobals()
	builtins.Register(globals, os.Stdout, os.Stdin)

	compiler := runtime.NewCompiler(globals)
	if err := compiler.CompileSource(filename, source); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	mainIndex := globals.Lookup("main")
	if mainIndex == runtime.GlobalDoesNotExist {
		fmt.Fprintln(os.Stderr, "you must define a `main` function")
		os.Exit(1)
	}

	vm := runtime.NewVM(globals)
	if stackLimit != runtime.DefaultStackFrameLimit {
		vm.Environment.SetStackFrameLimit(stackLimit)
	}

	mainFn := globals.Fetch(mainIndex)
	result, err := vm.CallValue(mainFn, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, runtime.FormatError(err))
		os.Exit(1)
	}

	if n, ok := result.(runtime.Number); ok {
		os.Exit(int(n))
	}
	return nil
}
