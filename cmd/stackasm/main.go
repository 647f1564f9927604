// Command stackasm is the assembler/disassembler CLI (§6): by default it
// parses one or more surface-syntax source files and writes a single
// binary image; with -d it does the reverse, loading binary images and
// printing them back out as source syntax.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/svenslaggare/stackjit-go/internal/image"
	"github.com/svenslaggare/stackjit-go/internal/source"
	"github.com/svenslaggare/stackjit-go/internal/vmlog"
)

var log = vmlog.For(vmlog.Loader)

var (
	outputPath  string
	disassemble bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stackasm [files...]",
		Short: "StackJIT assembler and disassembler",
		Long:  "Parses surface-syntax source files into a binary image, or (-d) prints a binary image back out as source.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run,
	}
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "library.simg", "binary image output path")
	rootCmd.Flags().BoolVarP(&disassemble, "disassemble", "d", false, "treat arguments as binary images and print them as source")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if disassemble {
		return disassembleFiles(args)
	}
	return assembleFiles(args)
}

// assembleFiles concatenates every source file's contents into one token
// stream and parses them as a single compilation unit: §6's grammar has no
// notion of cross-file linkage, and internal/source.Parse's multi-pass
// design (every signature registered before any body parses) already
// handles declarations appearing in any order, so feeding it the
// concatenation of N files produces the same program a per-file merge
// would, without a separate vm.Program-merging step.
func assembleFiles(paths []string) error {
	var body strings.Builder
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("stackasm: reading %s: %w", path, err)
		}
		body.Write(data)
		body.WriteByte('\n')
	}

	prog, err := source.Parse(body.String())
	if err != nil {
		return fmt.Errorf("stackasm: %w", err)
	}

	encoded, err := image.Encode(prog)
	if err != nil {
		return fmt.Errorf("stackasm: encoding image: %w", err)
	}

	if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
		return fmt.Errorf("stackasm: writing %s: %w", outputPath, err)
	}

	log.WithField("output", outputPath).WithField("functions", len(prog.Functions())).Info("wrote image")
	return nil
}

func disassembleFiles(paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("stackasm: reading %s: %w", path, err)
		}

		img, err := image.Load(data)
		if err != nil {
			return fmt.Errorf("stackasm: loading %s: %w", path, err)
		}

		if err := img.LoadAll(); err != nil {
			return fmt.Errorf("stackasm: materializing %s: %w", path, err)
		}

		if err := source.Print(img.Program(), os.Stdout); err != nil {
			return fmt.Errorf("stackasm: disassembling %s: %w", path, err)
		}
	}
	return nil
}
