package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mozilla/rhino-sub008/ast"
	"github.com/mozilla/rhino-sub008/compiler"
)

// ---------------------------------------------------------------------------
// rhino fmt: canonical source formatter
// ---------------------------------------------------------------------------

// Format parses source and regenerates it in canonical form, keeping
// comments. It does not touch the filesystem.
func Format(source, sourceName string) (string, error) {
	prog, err := compiler.Parse(source, compiler.Options{SourceName: sourceName, KeepComments: true})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(ast.ToSource(prog), "\n") + "\n", nil
}

func newFmtCmd() *cobra.Command {
	var write, list bool
	cmd := &cobra.Command{
		Use:   "fmt [files...]",
		Short: "Format script files",
		Long: "Reformat script files. By default the formatted source is printed; with\n" +
			"--write files are rewritten in place and with --list only the names of\n" +
			"files whose formatting differs are printed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				formatted, err := Format(string(data), path)
				if err != nil {
					return err
				}
				changed := !bytes.Equal(data, []byte(formatted))
				switch {
				case list:
					if changed {
						fmt.Fprintln(out, path)
					}
				case write:
					if !changed {
						continue
					}
					if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
						return err
					}
					log.Infof("formatted %s", path)
				default:
					fmt.Fprint(out, formatted)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the source files")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list files whose formatting differs")
	return cmd
}
