// Package compiler wires the lowering/optimization/allocation/assembly
// pipeline into a single entry point, mirroring the teacher's top-level
// compile() pipeline (parse→analyze→optimize→codegen) restructured as a
// library function rather than inlined in main.
package compiler

import (
	"fmt"

	"github.com/machine-dialect/mdc/pkg/ast"
	"github.com/machine-dialect/mdc/pkg/bytecode"
	"github.com/machine-dialect/mdc/pkg/diag"
	"github.com/machine-dialect/mdc/pkg/hir"
	"github.com/machine-dialect/mdc/pkg/mir"
	"github.com/machine-dialect/mdc/pkg/mir/reporting"
	"github.com/machine-dialect/mdc/pkg/regalloc"
)

// Options configures one Compile call (§[AMBIENT] Configuration).
type Options struct {
	ModuleName   string
	OptimizeLevel mir.Level
	MaxRegisters int
	Reporter     *reporting.OptimizationReporter
}

// WithDefaults fills in zero fields with their documented defaults.
func (o Options) WithDefaults() Options {
	if o.ModuleName == "" {
		o.ModuleName = "main"
	}
	if o.MaxRegisters <= 0 {
		o.MaxRegisters = regalloc.DefaultMaxRegisters
	}
	return o
}

// Result is the outcome of a Compile call: either a bytecode.Module (when
// Diagnostics carries no Error-severity entry) or diagnostics alone.
type Result struct {
	Module      *bytecode.Module
	Diagnostics []diag.Diagnostic
}

// Compile lowers prog through HIR, MIR, optimization, register allocation,
// and bytecode assembly. Compilation never panics on malformed-but-parseable
// input (I1): every failure surfaces as a diag.Diagnostic or a returned
// error from a later, structurally-guaranteed-safe stage.
func Compile(prog *ast.Program, opts Options) (Result, error) {
	opts = opts.WithDefaults()

	hirProg, diags := hir.Lower(prog)
	result := Result{Diagnostics: diags.Items()}
	if diags.HasErrors() {
		return result, nil
	}

	mod, mdiags := mir.Build(hirProg)
	result.Diagnostics = append(result.Diagnostics, mdiags.Items()...)
	if mdiags.HasErrors() {
		return result, nil
	}

	mir.Optimize(mod, opts.OptimizeLevel, opts.Reporter)

	allocs := make(map[*mir.Function]*regalloc.Allocation, len(mod.Functions))
	for _, fn := range mod.Functions {
		alloc, err := regalloc.Allocate(fn, opts.MaxRegisters)
		if err != nil {
			return result, fmt.Errorf("register allocation for %q: %w", fn.Name, err)
		}
		allocs[fn] = alloc
	}

	bcMod, err := bytecode.Assemble(mod, allocs, opts.ModuleName)
	if err != nil {
		return result, fmt.Errorf("bytecode assembly: %w", err)
	}
	result.Module = bcMod
	return result, nil
}
