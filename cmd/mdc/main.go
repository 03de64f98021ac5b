// Command mdc is the Machine Dialect compiler CLI: it reads a typed AST
// (the external parser's output, §1/§3.1, serialized per pkg/ast's JSON wire
// contract since the Markdown surface parser itself is out of scope) and
// compiles it to a bytecode module, mirroring cmd/minzc's cobra command tree.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/machine-dialect/mdc/pkg/ast"
	"github.com/machine-dialect/mdc/pkg/compiler"
	"github.com/machine-dialect/mdc/pkg/diag"
	"github.com/machine-dialect/mdc/pkg/mir"
	"github.com/machine-dialect/mdc/pkg/mir/reporting"
	"github.com/machine-dialect/mdc/pkg/version"
)

var (
	outputFile   string
	optimizeFlag string
	debug        bool
	dumpHIR      bool
	dumpMIR      bool
	vizMIR       string
	showVersion  bool
)

var rootCmd = &cobra.Command{
	Use:   "mdc [ast.json]",
	Short: "Machine Dialect Compiler " + version.GetVersion(),
	Long: `mdc compiles a Machine Dialect typed AST (as emitted by the external
Markdown parser, serialized per pkg/ast's JSON contract) into an MDBC
bytecode module, running it through HIR lowering, MIR SSA construction and
optimization, linear-scan register allocation, and bytecode assembly.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetFullVersion())
			return
		}
		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}
		if err := compile(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: input's base name with .mdbc extension, in the current directory)")
	rootCmd.Flags().StringVar(&optimizeFlag, "optimize", "basic", "optimization level: none, basic, aggressive")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	rootCmd.Flags().BoolVar(&dumpHIR, "dump-hir", false, "accepted but ignored: no HIR dump is produced")
	rootCmd.Flags().BoolVar(&dumpMIR, "dump-mir", false, "accepted but ignored: no MIR dump is produced")
	rootCmd.Flags().StringVar(&vizMIR, "viz-mir", "", "write a MIR optimization report to this file (text format)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func optimizeLevel(s string) (mir.Level, error) {
	switch s {
	case "none":
		return mir.LevelNone, nil
	case "basic":
		return mir.LevelBasic, nil
	case "aggressive":
		return mir.LevelAggressive, nil
	default:
		return mir.LevelNone, fmt.Errorf("unknown optimization level %q", s)
	}
}

func compile(astFile string) error {
	logger := log.New()
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	data, err := os.ReadFile(astFile)
	if err != nil {
		return fmt.Errorf("reading AST file: %w", err)
	}
	prog, err := ast.LoadJSON(data)
	if err != nil {
		return fmt.Errorf("parsing AST JSON: %w", err)
	}

	level, err := optimizeLevel(optimizeFlag)
	if err != nil {
		return err
	}

	rep := reporting.New()
	opts := compiler.Options{
		ModuleName:    moduleNameFromPath(astFile),
		OptimizeLevel: level,
		Reporter:      rep,
	}

	result, err := compiler.Compile(prog, opts)
	if err != nil {
		return err
	}

	hasError := false
	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, d.String())
		if d.Severity != diag.Info {
			hasError = true
		}
	}
	if hasError || result.Module == nil {
		return fmt.Errorf("compilation failed with %d diagnostic(s)", len(result.Diagnostics))
	}

	if vizMIR != "" {
		if err := os.WriteFile(vizMIR, []byte((&reporting.TextReportFormatter{}).Format(rep)), 0644); err != nil {
			return fmt.Errorf("writing optimization report: %w", err)
		}
	}

	out := outputFile
	if out == "" {
		out = opts.ModuleName + ".mdbc"
	}
	encoded, err := result.Module.Encode()
	if err != nil {
		return fmt.Errorf("encoding bytecode module: %w", err)
	}
	if err := os.WriteFile(out, encoded, 0644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	if debug {
		logger.WithField("output", out).WithField("functions", len(result.Module.Functions)).Debug("compiled module")
	}
	return nil
}

func moduleNameFromPath(path string) string {
	base := path
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
