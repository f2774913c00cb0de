package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/store"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/vm"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/wasm"
)

func newRunCmd() *cobra.Command {
	var cacheSize int
	var funcName string
	cmd := &cobra.Command{
		Use:   "run <module.wasm> [args...]",
		Short: "Instantiate a Wasm binary and call one of its exported functions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStore(cacheSize)
			if err != nil {
				return err
			}
			defer s.Close()

			wasmBytes, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			m, err := s.Compile(wasmBytes)
			if err != nil {
				return err
			}

			linker := store.NewLinker()
			inst, err := linker.Instantiate(s, m)
			if err != nil {
				return err
			}

			ext, err := store.GetExport(inst, funcName)
			if err != nil {
				return err
			}
			if ext.Kind != wasm.ExternKindFunc {
				return fmt.Errorf("k23run: export %q is not a function", funcName)
			}

			ft := inst.Module.FuncType(lookupFuncIndex(inst, funcName))
			callArgs, err := parseArgs(ft.Params, args[1:])
			if err != nil {
				return err
			}

			results, err := ext.Func.HostCall(callArgs)
			if err != nil {
				return err
			}
			printResults(cmd, ft.Results, results)
			return nil
		},
	}
	cmd.Flags().IntVar(&cacheSize, "engine-cache-size", 128, "in-memory compiled module cache size")
	cmd.Flags().StringVar(&funcName, "invoke", "_start", "exported function to call")
	return cmd
}

func lookupFuncIndex(inst *vm.Instance, name string) wasm.FuncIndex {
	return wasm.FuncIndex(inst.Module.Exports[name].Index)
}

func parseArgs(params []wasm.ValueType, raw []string) ([]vm.VMVal, error) {
	if len(raw) != len(params) {
		return nil, fmt.Errorf("k23run: function takes %d arguments, got %d", len(params), len(raw))
	}
	out := make([]vm.VMVal, len(params))
	for i, t := range params {
		switch t {
		case wasm.ValueTypeI32:
			v, err := strconv.ParseInt(raw[i], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("k23run: argument %d: %w", i, err)
			}
			out[i] = vm.I32(int32(v))
		case wasm.ValueTypeI64:
			v, err := strconv.ParseInt(raw[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("k23run: argument %d: %w", i, err)
			}
			out[i] = vm.I64(v)
		case wasm.ValueTypeF32:
			v, err := strconv.ParseFloat(raw[i], 32)
			if err != nil {
				return nil, fmt.Errorf("k23run: argument %d: %w", i, err)
			}
			out[i] = vm.F32(float32(v))
		case wasm.ValueTypeF64:
			v, err := strconv.ParseFloat(raw[i], 64)
			if err != nil {
				return nil, fmt.Errorf("k23run: argument %d: %w", i, err)
			}
			out[i] = vm.F64(v)
		default:
			return nil, fmt.Errorf("k23run: argument %d: unsupported parameter type %v", i, t)
		}
	}
	return out, nil
}

func printResults(cmd *cobra.Command, results []wasm.ValueType, vals []vm.VMVal) {
	out := cmd.OutOrStdout()
	for i, t := range results {
		switch t {
		case wasm.ValueTypeI32:
			fmt.Fprintln(out, vals[i].I32())
		case wasm.ValueTypeI64:
			fmt.Fprintln(out, vals[i].I64())
		case wasm.ValueTypeF32:
			fmt.Fprintln(out, vals[i].F32())
		case wasm.ValueTypeF64:
			fmt.Fprintln(out, vals[i].F64())
		default:
			fmt.Fprintf(out, "%v\n", vals[i])
		}
	}
}
