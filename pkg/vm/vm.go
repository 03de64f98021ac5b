// Package vm implements the register-based virtual machine that executes a
// compiled bytecode.Module (§4.5): a call-frame stack over fixed-size
// physical register files, named-variable access through pkg/env (giving
// closures correct capture-by-reference semantics), and a single
// RuntimeError surface for the eleven failure kinds of §7.
package vm

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/machine-dialect/mdc/pkg/bytecode"
	"github.com/machine-dialect/mdc/pkg/env"
	"github.com/machine-dialect/mdc/pkg/value"
)

// DefaultMaxCallDepth is the call-frame depth budget (§5).
const DefaultMaxCallDepth = 1024

// Config configures one VM run.
type Config struct {
	MaxCallDepth int
	MaxRegisters int
	Debug        bool
	Output       io.Writer
	Logger       *log.Logger
}

// WithDefaults fills in zero fields with their documented defaults.
func (c Config) WithDefaults() Config {
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.MaxRegisters <= 0 {
		c.MaxRegisters = 256
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
	return c
}

func discardLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// Statistics summarizes one Run, mirroring the teacher's VM statistics
// surfaced by `mdvm -v`.
type Statistics struct {
	InstructionsExecuted int64
	CallsExecuted        int64
	MaxCallDepthReached   int
}

// funcEntry pairs a loaded function with the module whose constant pool its
// operands index into, so a Session can hold functions drawn from several
// bytecode.Modules (one per REPL snippet) at once.
type funcEntry struct {
	fn  *bytecode.Function
	mod *bytecode.Module
}

// VM holds the state of one module execution. A VM is single-use per Run
// call; cmd/mdrepl instead drives the lower-level Session type to persist
// functions and the global environment across many compiled snippets.
type VM struct {
	cfg     Config
	fnTable map[string]funcEntry
	global  *env.Environment
	depth   int
	Stats   Statistics
}

// Run executes mod's main function to completion and returns its result.
func Run(mod *bytecode.Module, cfg Config) (value.Value, error) {
	result, _, err := RunWithStats(mod, cfg)
	return result, err
}

// RunWithStats is Run but also returns the run's execution Statistics, for
// callers (such as cmd/mdvm's -v flag) that want instruction/call counts.
func RunWithStats(mod *bytecode.Module, cfg Config) (value.Value, Statistics, error) {
	s := NewSession(cfg)
	if err := s.Load(mod); err != nil {
		return nil, s.vm.Stats, err
	}
	if mod.MainIndex < 0 || mod.MainIndex >= len(mod.Functions) {
		return nil, s.vm.Stats, newError(MalformedBytecode, "module has no valid main function index")
	}
	result, err := s.Call(mod.Functions[mod.MainIndex].Name, nil)
	return result, s.vm.Stats, err
}

// Session is a persistent VM over a shared global Environment and function
// table, accumulated across repeated Load calls — the execution model
// cmd/mdrepl needs to keep closures and prior Set bindings alive between
// one compiled snippet and the next.
type Session struct {
	vm *VM
}

// NewSession starts a fresh session with an empty global environment.
func NewSession(cfg Config) *Session {
	cfg = cfg.WithDefaults()
	return &Session{vm: &VM{
		cfg:     cfg,
		fnTable: make(map[string]funcEntry),
		global:  env.New(),
	}}
}

// Load registers every function in mod (by name, last-loaded wins) so later
// Call invocations — from this or a subsequently loaded module — can resolve
// them; it does not execute anything.
func (s *Session) Load(mod *bytecode.Module) error {
	for i := range mod.Functions {
		fn := &mod.Functions[i]
		s.vm.fnTable[fn.Name] = funcEntry{fn: fn, mod: mod}
	}
	return nil
}

// Call invokes the named, already-Loaded function against the session's
// persistent global environment.
func (s *Session) Call(name string, args []value.Value) (value.Value, error) {
	entry, ok := s.vm.fnTable[name]
	if !ok {
		return nil, newError(UnknownUtility, "call to unknown utility %q", name)
	}
	return s.vm.callFunction(entry.fn, entry.mod, args, s.vm.global)
}

// Global exposes the session's persistent environment, e.g. so a REPL can
// print bound names between snippets.
func (s *Session) Global() *env.Environment { return s.vm.global }

func constStr(mod *bytecode.Module, idx uint16) string {
	if int(idx) >= len(mod.Constants) {
		return ""
	}
	return mod.Constants[idx].Str
}

func constValue(mod *bytecode.Module, idx uint16) (value.Value, error) {
	if int(idx) >= len(mod.Constants) {
		return nil, newError(MalformedBytecode, "constant index %d out of range", idx)
	}
	c := mod.Constants[idx]
	switch c.Kind {
	case bytecode.ConstInt:
		return value.NewInteger(c.Int), nil
	case bytecode.ConstFloat:
		return value.NewFloat(c.Float), nil
	case bytecode.ConstStr:
		return value.NewString(c.Str), nil
	case bytecode.ConstURL:
		return value.NewURL(c.Str), nil
	case bytecode.ConstBool:
		return value.Bool(c.Bool), nil
	case bytecode.ConstEmpty:
		return value.EmptyValue, nil
	case bytecode.ConstMissing:
		return value.MissingValue, nil
	default:
		return nil, newError(MalformedBytecode, "unknown constant kind %d", c.Kind)
	}
}

// callFunction executes fn (whose operands index into mod's constant pool)
// with the given positional argument values bound into frameEnv under fn's
// declared parameter names, returning its Give-Back value (or Empty if
// control fell off the end).
func (vm *VM) callFunction(fn *bytecode.Function, mod *bytecode.Module, args []value.Value, frameEnv *env.Environment) (value.Value, error) {
	if vm.depth >= vm.cfg.MaxCallDepth {
		return nil, newError(StackOverflow, "call depth exceeded %d frames", vm.cfg.MaxCallDepth)
	}
	vm.depth++
	defer func() { vm.depth-- }()
	if vm.depth > vm.Stats.MaxCallDepthReached {
		vm.Stats.MaxCallDepthReached = vm.depth
	}
	vm.Stats.CallsExecuted++

	for i, nameIdx := range fn.ParamNames {
		name := constStr(mod, nameIdx)
		if i >= len(args) {
			frameEnv.Define(name, value.EmptyValue)
			continue
		}
		if args[i] == value.MissingValue {
			return nil, newError(MissingRequiredParameter, "missing required parameter %q in call to %q", name, fn.Name)
		}
		frameEnv.Define(name, args[i])
	}

	registers := make([]value.Value, fn.NumRegisters)
	for i := range registers {
		registers[i] = value.EmptyValue
	}

	pc := 0
	for pc < len(fn.Code) {
		instr := &fn.Code[pc]
		vm.Stats.InstructionsExecuted++
		if vm.cfg.Debug {
			vm.cfg.Logger.WithField("fn", fn.Name).WithField("pc", pc).Debugf("%s", instr.Op)
		}

		next := pc + 1
		switch instr.Op {
		case bytecode.OpConst:
			v, err := constValue(mod, instr.ConstIdx)
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			registers[instr.Dst] = v

		case bytecode.OpMove:
			registers[instr.Dst] = registers[instr.Src1]

		case bytecode.OpEnvGet:
			name := constStr(mod, instr.ConstIdx)
			v, ok := frameEnv.Get(name)
			if !ok {
				return nil, newError(UnknownIdentifier, "unbound name %q", name)
			}
			registers[instr.Dst] = v

		case bytecode.OpEnvSet:
			name := constStr(mod, instr.ConstIdx)
			frameEnv.Set(name, registers[instr.Src1])

		case bytecode.OpAdd:
			v, err := add(registers[instr.Src1], registers[instr.Src2])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			registers[instr.Dst] = v

		case bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
			v, err := arith(opSymbol(instr.Op), registers[instr.Src1], registers[instr.Src2])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			registers[instr.Dst] = v

		case bytecode.OpNeg:
			v, err := negate(registers[instr.Src1])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			registers[instr.Dst] = v

		case bytecode.OpNot:
			registers[instr.Dst] = logicalNot(registers[instr.Src1])

		case bytecode.OpEq:
			eq, err := looseEqual(registers[instr.Src1], registers[instr.Src2])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			registers[instr.Dst] = value.Bool(eq)

		case bytecode.OpStrictEq, bytecode.OpStrictNeq:
			eq, err := strictEqual(registers[instr.Src1], registers[instr.Src2])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			if instr.Op == bytecode.OpStrictNeq {
				eq = !eq
			}
			registers[instr.Dst] = value.Bool(eq)

		case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
			cmp, err := compare(registers[instr.Src1], registers[instr.Src2])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			var result bool
			switch instr.Op {
			case bytecode.OpLt:
				result = cmp < 0
			case bytecode.OpLe:
				result = cmp <= 0
			case bytecode.OpGt:
				result = cmp > 0
			case bytecode.OpGe:
				result = cmp >= 0
			}
			registers[instr.Dst] = value.Bool(result)

		case bytecode.OpAssertBool:
			b, ok := registers[instr.Src1].(*value.Boolean)
			if !ok {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc),
					newError(TypeMismatch, "and/or operand must be Yes/No, got %s", registers[instr.Src1].TypeName()))
			}
			registers[instr.Dst] = b

		case bytecode.OpLen:
			v, err := lengthOf(registers[instr.Src1])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			registers[instr.Dst] = v

		case bytecode.OpIndex:
			v, err := indexInto(registers[instr.Src1], registers[instr.Src2])
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}
			registers[instr.Dst] = v

		case bytecode.OpIndexSet:
			if err := setIndex(registers[instr.Src1], registers[instr.Src2], registers[instr.Regs[0]]); err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}

		case bytecode.OpListAppend:
			if err := appendToList(registers[instr.Src1], registers[instr.Src2]); err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}

		case bytecode.OpListInsert:
			if err := insertIntoList(registers[instr.Src1], registers[instr.Src2], registers[instr.Regs[0]]); err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}

		case bytecode.OpListRemove:
			if err := removeFromList(registers[instr.Src1], registers[instr.Src2]); err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d", fn.Name, pc), err)
			}

		case bytecode.OpMakeList:
			// The resulting List aliases no other value's backing slice —
			// a fresh slice is allocated per construction so two list
			// literals never unintentionally share storage (§4.6);
			// aliasing only arises later when one List value is assigned
			// to another name without copying.
			elems := make([]value.Value, len(instr.Regs))
			for i, r := range instr.Regs {
				elems[i] = registers[r]
			}
			registers[instr.Dst] = value.NewList(elems)

		case bytecode.OpMakeDict:
			d := value.NewDictionary()
			for i, r := range instr.Regs {
				d.Set(constStr(mod, instr.DictKeys[i]), registers[r])
			}
			registers[instr.Dst] = d

		case bytecode.OpCall:
			name := constStr(mod, instr.ConstIdx)
			entry, ok := vm.fnTable[name]
			if !ok {
				return nil, newError(UnknownUtility, "call to unknown utility %q", name)
			}
			args := make([]value.Value, len(instr.Regs))
			for i, r := range instr.Regs {
				args[i] = registers[r]
			}
			calleeEnv := env.NewEnclosed(vm.global)
			result, err := vm.callFunction(entry.fn, entry.mod, args, calleeEnv)
			if err != nil {
				return nil, wrap(fmt.Sprintf("%s:%d calling %s", fn.Name, pc, name), err)
			}
			registers[instr.Dst] = result

		case bytecode.OpSay:
			fmt.Fprintln(vm.cfg.Output, registers[instr.Src1].Inspect())

		case bytecode.OpReturn:
			return registers[instr.Src1], nil

		case bytecode.OpJump:
			next = int(instr.Target)

		case bytecode.OpBranch:
			if value.IsTruthy(registers[instr.Src1]) {
				next = int(instr.TrueTarget)
			} else {
				next = int(instr.FalseTarget)
			}

		default:
			return nil, newError(MalformedBytecode, "unknown opcode %v at %s:%d", instr.Op, fn.Name, pc)
		}
		pc = next
	}
	return value.EmptyValue, nil
}

func opSymbol(op bytecode.Opcode) string {
	switch op {
	case bytecode.OpSub:
		return "-"
	case bytecode.OpMul:
		return "*"
	case bytecode.OpDiv:
		return "/"
	default:
		return "?"
	}
}
