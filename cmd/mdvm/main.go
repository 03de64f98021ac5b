// Command mdvm is a standalone bytecode-module runner: it loads a compiled
// .mdbc file and executes it, mirroring cmd/mzv's flag surface (stdlib
// flag, positional input, -trace, -v) adapted to a register/environment VM
// that has no flat byte-addressed memory to size with -mem/-stack.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/machine-dialect/mdc/pkg/bytecode"
	"github.com/machine-dialect/mdc/pkg/vm"
)

func main() {
	var (
		trace    = flag.Bool("trace", false, "trace instruction dispatch")
		verbose  = flag.Bool("v", false, "print execution statistics after running")
		maxSteps = flag.Int("max-steps", 0, "maximum call-frame depth (0 = default 1024)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Machine Dialect Virtual Machine\n")
		fmt.Fprintf(os.Stderr, "Usage: %s <module.mdbc> [options]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: input .mdbc module required\n")
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading module: %v\n", err)
		os.Exit(1)
	}
	mod, err := bytecode.Decode(data)
	if err != nil {
		// Decode failures (bad magic, unsupported version, truncated input)
		// are all MalformedBytecode (§7); pkg/bytecode stays vm-agnostic, so
		// the wrap happens here at the boundary where both packages meet.
		rerr := &vm.RuntimeError{Kind: vm.MalformedBytecode, Message: err.Error()}
		fmt.Fprintf(os.Stderr, "Error decoding module: %v\n", rerr)
		os.Exit(1)
	}

	logger := log.New()
	if *trace {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := vm.Config{Debug: *trace, Output: os.Stdout, Logger: logger}
	if *maxSteps > 0 {
		cfg.MaxCallDepth = *maxSteps
	}

	result, stats, err := vm.RunWithStats(mod, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "\nResult: %s\n", result.Inspect())
		fmt.Fprintf(os.Stderr, "Instructions executed: %d\n", stats.InstructionsExecuted)
		fmt.Fprintf(os.Stderr, "Calls executed: %d\n", stats.CallsExecuted)
		fmt.Fprintf(os.Stderr, "Max call depth reached: %d\n", stats.MaxCallDepthReached)
	}
}
