package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/enginecache"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/filecache"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/store"
)

func newCompileCmd() *cobra.Command {
	var cacheSize int
	cmd := &cobra.Command{
		Use:   "compile <module.wasm>",
		Short: "Translate and link a Wasm binary without instantiating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStore(cacheSize)
			if err != nil {
				return err
			}
			wasmBytes, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			m, err := s.Compile(wasmBytes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d functions, %d exports\n", m.NumFunctions(), len(m.ExportSection))
			return nil
		},
	}
	cmd.Flags().IntVar(&cacheSize, "engine-cache-size", 128, "in-memory compiled module cache size")
	return cmd
}

func newStore(cacheSize int) (*store.Store, error) {
	opts := []store.Option{store.WithLogger(log.WithField("component", "store"))}

	engine, err := enginecache.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create engine cache: %w", err)
	}
	opts = append(opts, store.WithEngineCache(engine))

	if cacheDir != "" {
		disk, err := filecache.New(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create file cache: %w", err)
		}
		opts = append(opts, store.WithFileCache(disk))
	}

	return store.New(opts...), nil
}
