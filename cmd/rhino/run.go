package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	rhino "github.com/mozilla/rhino-sub008"
	"github.com/mozilla/rhino-sub008/vm"
)

// ---------------------------------------------------------------------------
// rhino run: evaluate script files in one Context
// ---------------------------------------------------------------------------

func newRunCmd(opts *options) *cobra.Command {
	var printResult bool
	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Evaluate script files",
		Long: "Evaluate script files in order, sharing one global scope. A file named -\n" +
			"is read from standard input. Scripts can write to standard output with\n" +
			"print(...).",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd, opts, args, printResult)
		},
	}
	cmd.Flags().BoolVarP(&printResult, "print", "p", false, "print the value of the last file")
	return cmd
}

func runFiles(cmd *cobra.Command, opts *options, files []string, printResult bool) error {
	fy, cfg, err := opts.factory(cmd)
	if err != nil {
		return err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()
	fy.AddHostInitializer(func(cx *vm.Context, global *vm.Object) error {
		global.SetOwn("print", printFunction(cx.Realm(), stdout), vm.FlagsHidden)
		return nil
	})

	cx, exit := fy.Enter()
	defer exit()

	var result vm.Value = vm.Undefined
	for _, path := range files {
		source, name, err := opts.readSource(path)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cancel := func() {}
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
		}
		log.Debugf("evaluating %s", name)
		result, err = rhino.EvaluateContext(ctx, cx, source, name)
		cancel()
		if err != nil {
			return reportError(cmd.ErrOrStderr(), err)
		}
	}
	if printResult && result != vm.Undefined {
		fmt.Fprintln(stdout, vm.ToDisplayValue(result))
	}
	return nil
}

// reportError writes the script stack of an uncaught exception before
// handing the error back to cobra.
func reportError(w io.Writer, err error) error {
	var ex *vm.Exception
	if errors.As(err, &ex) {
		if stack := ex.ScriptStack(); stack != "" {
			fmt.Fprintln(w, strings.TrimRight(stack, "\n"))
		}
		return fmt.Errorf("uncaught %w", err)
	}
	return err
}

// printFunction writes its arguments separated by spaces, like the print
// of the classic shell.
func printFunction(r *vm.Realm, w io.Writer) *vm.Object {
	return vm.NewNativeFunction(r, "print", 0, func(cx *vm.Context, this vm.Value, args []vm.Value) (vm.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			s, err := cx.ToString(a)
			if err != nil {
				return nil, err
			}
			parts[i] = s.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return vm.Undefined, nil
	})
}
