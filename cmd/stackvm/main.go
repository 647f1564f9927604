// Command stackvm loads a binary image, compiles its entry point main()
// lazily, and runs it, exiting with the integer main returns (§6 "CLI
// surface (VM)").
package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/svenslaggare/stackjit-go/internal/callconv"
	"github.com/svenslaggare/stackjit-go/internal/compiler"
	"github.com/svenslaggare/stackjit-go/internal/heap"
	"github.com/svenslaggare/stackjit-go/internal/image"
	"github.com/svenslaggare/stackjit-go/internal/vm"
	"github.com/svenslaggare/stackjit-go/internal/vmlog"
)

// missingMainExitCode is used both when main() isn't found and when an
// image fails to load or compile (§7 "the conventional error code if main
// is missing or a runtime fault terminates execution"). A runtime fault
// itself never reaches this: vmruntime's fault handlers call os.Exit(1)
// directly from inside compiled code's call stack (vmruntime/faults.go).
const missingMainExitCode = 1

var (
	noPrompt bool
	trace    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stackvm <image>",
		Short: "StackJIT virtual machine",
		Long:  "Loads a binary image, compiles its entry point main() lazily, and runs it.",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	rootCmd.Flags().BoolVar(&noPrompt, "nd", false, "disable the interactive confirmation prompt before running")
	rootCmd.Flags().BoolVar(&trace, "trace", false, "enable allocation/compilation diagnostic logging")

	// pflag reads a single-dash word as a run of one-letter shorthands, so
	// the single-dash spellings -nd and -trace are rewritten to long flags.
	for i, arg := range os.Args[1:] {
		if arg == "-nd" || arg == "-trace" {
			os.Args[i+1] = "-" + arg
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(missingMainExitCode)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if trace {
		vmlog.SetLevel(logrus.DebugLevel)
	}

	imagePath := args[0]
	if !noPrompt && !confirm(imagePath) {
		fmt.Fprintln(os.Stderr, "stackvm: aborted")
		os.Exit(missingMainExitCode)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("stackvm: reading %s: %w", imagePath, err)
	}

	img, err := image.Load(data)
	if err != nil {
		return fmt.Errorf("stackvm: loading %s: %w", imagePath, err)
	}

	// No dynamic class loading happens once main starts running (§1
	// Non-goals), so every function and class body is materialized here,
	// up front, rather than on first reference during compilation.
	if err := img.LoadAll(); err != nil {
		return fmt.Errorf("stackvm: %w", err)
	}

	prog := img.Program()
	mainFn, ok := prog.LookupSignature("main()")
	if !ok {
		fmt.Fprintln(os.Stderr, "stackvm: no entry point main() in", imagePath)
		os.Exit(missingMainExitCode)
	}
	if len(mainFn.Params) != 0 {
		fmt.Fprintln(os.Stderr, "stackvm: main() must take no arguments")
		os.Exit(missingMainExitCode)
	}

	cc := callconv.ForGOOS(runtime.GOOS)
	h := heap.NewDefaultHeap()
	engine := compiler.NewEngine(prog, cc, h)
	defer engine.Close()

	// Only main() is compiled up front; every call it makes goes through
	// the lazy compile stub (internal/compiler/engine.go), compiling each
	// callee the first time its call site executes.
	entry, err := engine.Compile(mainFn)
	if err != nil {
		return fmt.Errorf("stackvm: compiling main(): %w", err)
	}

	if mainFn.ReturnType != vm.Int && mainFn.ReturnType != vm.Void {
		fmt.Fprintln(os.Stderr, "stackvm: main() must return Int or Void")
		os.Exit(missingMainExitCode)
	}

	os.Exit(int(compiler.InvokeMain(entry)))
	return nil
}

// confirm asks before running an image loaded from an untrusted path,
// suppressed by -nd (§6, "SUPPLEMENTED FEATURES" on -nd).
func confirm(imagePath string) bool {
	fmt.Fprintf(os.Stderr, "stackvm: run %s? [y/N] ", imagePath)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
