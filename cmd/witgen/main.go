package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/witgen/abi"
	"github.com/wippyai/witgen/errors"
)

func main() {
	var (
		funcName    = flag.String("func", "", "Function to dump (default: list functions)")
		direction   = flag.String("dir", "import", "Boundary direction: import, export, import-async, export-async")
		list        = flag.Bool("list", false, "List demo functions and exit")
		layouts     = flag.Bool("layouts", false, "Print type layout table and exit")
		unchecked   = flag.Bool("unchecked", false, "Drop validation from lift instructions")
		rawStrings  = flag.Bool("raw-strings", false, "Skip UTF-8 validation on lifted strings")
		realloc     = flag.String("realloc", "", "Allocator export name (default cabi_realloc)")
		interactive = flag.Bool("i", false, "Interactive browser")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			defer logger.Sync()
			zap.ReplaceGlobals(logger)
		}
	}

	opts := abi.Options{
		Unchecked:  *unchecked,
		RawStrings: *rawStrings,
		Realloc:    *realloc,
	}

	world := buildDemoWorld()

	// With no arguments on a terminal, default to the browser.
	autoTUI := flag.NFlag() == 0 && term.IsTerminal(int(os.Stdout.Fd()))

	if *interactive || autoTUI {
		if err := runInteractive(world, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(world, *funcName, *direction, opts, *list, *layouts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(world *demoWorld, funcName, direction string, opts abi.Options, listOnly, layouts bool) error {
	sizes := world.sizes()

	if layouts {
		printLayouts(world, sizes)
		return nil
	}

	if listOnly || funcName == "" {
		fmt.Println("Demo functions:")
		for _, f := range world.funcs {
			fmt.Printf("  %s\n", formatSignature(f))
		}
		if funcName == "" && !listOnly {
			fmt.Println("\nUse -func to dump a function's instruction streams.")
		}
		return nil
	}

	f := world.find(funcName)
	if f == nil {
		return errors.NotFound(errors.PhaseConfig, "function", funcName)
	}

	variant, err := parseVariant(direction)
	if err != nil {
		return err
	}

	fmt.Printf("%s  [%s]\n", formatSignature(f), variant)

	sig := abi.FlattenSignature(variant, f)
	fmt.Printf("core: (%s) -> (%s)", coreTypes(sig.Params), coreTypes(sig.Results))
	if sig.IndirectParams {
		fmt.Print("  indirect-params")
	}
	if sig.RetPtr {
		fmt.Print("  retptr")
	}
	fmt.Println()

	intents := []struct {
		name string
		lift abi.LiftLower
	}{
		{"lower args, lift results (caller)", abi.LowerArgsLiftResults},
		{"lift args, lower results (callee)", abi.LiftArgsLowerResults},
	}

	for _, in := range intents {
		// Each direction supports one side of the async protocol only.
		if variant == abi.GuestImportAsync && in.lift == abi.LiftArgsLowerResults {
			continue
		}
		if variant == abi.GuestExportAsync && in.lift == abi.LowerArgsLiftResults {
			continue
		}

		rec := abi.NewRecorder(sizes)
		if err := abi.Call(variant, in.lift, f, rec, opts); err != nil {
			return err
		}
		fmt.Printf("\n-- %s --\n%s\n", in.name, rec.Listing())
	}

	if variant == abi.GuestExport && abi.NeedsPostReturn(f) {
		rec := abi.NewRecorder(sizes)
		if err := abi.PostReturn(f, rec, opts); err != nil {
			return err
		}
		fmt.Printf("\n-- post-return --\n%s\n", rec.Listing())
	}

	return nil
}

func printLayouts(world *demoWorld, sizes *abi.SizeAlign) {
	fmt.Printf("%-16s %6s %6s  %s\n", "type", "size", "align", "flat")
	for _, td := range world.types {
		l := sizes.Calculate(td)
		flat := abi.FlattenType(td)
		fmt.Printf("%-16s %6d %6d  %s\n", witTypeStr(td), l.Size, l.Align, coreTypes(flat))
	}
}

func parseVariant(s string) (abi.AbiVariant, error) {
	switch s {
	case "import":
		return abi.GuestImport, nil
	case "export":
		return abi.GuestExport, nil
	case "import-async":
		return abi.GuestImportAsync, nil
	case "export-async":
		return abi.GuestExportAsync, nil
	default:
		return 0, errors.InvalidData(errors.PhaseConfig, []string{"dir"},
			fmt.Sprintf("unknown direction %q", s))
	}
}

func formatSignature(f *abi.Function) string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name+": "+witTypeStr(p.Type))
	}
	result := ""
	if len(f.Results) > 0 {
		result = " -> " + witTypeStr(f.Results[0].Type)
	}
	return f.Name + "(" + strings.Join(params, ", ") + ")" + result
}

func coreTypes(types []abi.CoreValType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
