// Command mdrepl is the interactive Machine Dialect session: a persistent
// vm.Session that compiles and runs one snippet at a time, mirroring
// cmd/repl's read-eval-print loop while using pkg/readline (the teacher's
// own scanner-based reader, already source-agnostic) instead of the raw
// terminal escape handling cmd/repl hand-rolls.
//
// Each entered line is one snippet of the same pkg/ast JSON wire contract
// cmd/mdc reads from a file — a typed AST, as the external parser would
// emit it, in its uncompressed JSON form. This keeps the Markdown surface
// parser out of scope while giving the REPL a concrete, line-at-a-time
// input format: type a JSON-encoded Program and press Enter to run it.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/machine-dialect/mdc/pkg/ast"
	"github.com/machine-dialect/mdc/pkg/compiler"
	"github.com/machine-dialect/mdc/pkg/diag"
	"github.com/machine-dialect/mdc/pkg/mir"
	"github.com/machine-dialect/mdc/pkg/readline"
	"github.com/machine-dialect/mdc/pkg/version"
	"github.com/machine-dialect/mdc/pkg/vm"
)

type repl struct {
	reader  *readline.Reader
	session *vm.Session
	snippet int
}

func newREPL() *repl {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".mdrepl_history")
	}
	r := readline.NewReader(&readline.Config{
		Prompt:      "mdrepl> ",
		HistoryFile: historyFile,
		Input:       os.Stdin,
		Output:      os.Stdout,
	})
	cfg := vm.Config{Output: os.Stdout}
	return &repl{
		reader:  r,
		session: vm.NewSession(cfg),
	}
}

func (r *repl) run() {
	r.printBanner()
	for {
		line, err := r.reader.ReadLine()
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			}
			fmt.Println("\nGoodbye!")
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if r.command(line) {
				return
			}
			continue
		}
		r.evaluate(line)
	}
}

func (r *repl) command(line string) (quit bool) {
	switch strings.Fields(line)[0] {
	case "/quit", "/q", "/exit":
		fmt.Println("Goodbye!")
		return true
	case "/help", "/h", "/?":
		r.printHelp()
	case "/vars":
		r.printVars()
	case "/history":
		r.printHistory()
	case "/clear-history":
		r.reader.ClearHistory()
		fmt.Println("History cleared")
	default:
		fmt.Printf("Unknown command: %s (try /help)\n", line)
	}
	return false
}

func (r *repl) evaluate(line string) {
	prog, err := ast.LoadJSON([]byte(line))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		return
	}

	r.snippet++
	result, err := compiler.Compile(prog, compiler.Options{
		ModuleName:    fmt.Sprintf("repl-%d", r.snippet),
		OptimizeLevel: mir.LevelBasic,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
		return
	}
	hadError := false
	for _, d := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, d.String())
		if d.Severity != diag.Info {
			hadError = true
		}
	}
	if hadError || result.Module == nil {
		return
	}

	if err := r.session.Load(result.Module); err != nil {
		fmt.Fprintf(os.Stderr, "load error: %v\n", err)
		return
	}
	v, err := r.session.Call(result.Module.Functions[result.Module.MainIndex].Name, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		return
	}
	if v != nil {
		fmt.Println(v.Inspect())
	}
}

func (r *repl) printVars() {
	names := r.session.Global().Names()
	if len(names) == 0 {
		fmt.Println("No names bound")
		return
	}
	for _, name := range names {
		v, _ := r.session.Global().Get(name)
		fmt.Printf("  %s = %s\n", name, v.Inspect())
	}
}

func (r *repl) printHistory() {
	history := r.reader.GetHistory()
	if len(history) == 0 {
		fmt.Println("No history yet")
		return
	}
	for i, line := range history {
		fmt.Printf("%4d  %s\n", i+1, line)
	}
}

func (r *repl) printBanner() {
	fmt.Printf("Machine Dialect REPL %s\n", version.GetVersion())
	fmt.Println("Enter one JSON-encoded Program per line (pkg/ast's wire contract). /help for commands, /quit to exit.")
}

func (r *repl) printHelp() {
	fmt.Println("/help, /h, /?   show this help")
	fmt.Println("/vars           list names bound in the session environment")
	fmt.Println("/history        list previously entered snippets")
	fmt.Println("/clear-history  clear the snippet history")
	fmt.Println("/quit, /q       exit")
}

func main() {
	newREPL().run()
}
