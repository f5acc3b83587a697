package main

import (
	"fmt"

	"github.com/spf13/cobra"

	rhino "github.com/mozilla/rhino-sub008"
)

// ---------------------------------------------------------------------------
// rhino disasm: print compiled forms
// ---------------------------------------------------------------------------

func newDisasmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm [files...]",
		Short: "Print the compiled form of script files",
		Long: "Compile script files without running them and print the bytecode listing.\n" +
			"At optimization level -1 the regenerated source of the syntax tree is\n" +
			"printed instead.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fy, _, err := opts.factory(cmd)
			if err != nil {
				return err
			}
			cx, exit := fy.Enter()
			defer exit()

			out := cmd.OutOrStdout()
			for i, path := range args {
				source, name, err := opts.readSource(path)
				if err != nil {
					return err
				}
				script, err := rhino.Compile(cx, source, name)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "; %s %s\n", script.Name(), script.ID()[:16])
				fmt.Fprint(out, script.Listing())
				if l := script.Listing(); len(l) > 0 && l[len(l)-1] != '\n' {
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
}
