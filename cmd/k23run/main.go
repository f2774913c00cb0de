// Command k23run is a minimal CLI front-end for the engine, the way
// cmd/wazero fronts the teacher: compile a Wasm binary to check it links
// cleanly, or instantiate it and call an exported function.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose  bool
	cacheDir string
	log      = logrus.New()
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "k23run",
		Short:         "k23run compiles and runs WebAssembly modules",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "on-disk compilation cache directory (disabled if empty)")

	root.AddCommand(newCompileCmd())
	root.AddCommand(newRunCmd())
	return root
}
