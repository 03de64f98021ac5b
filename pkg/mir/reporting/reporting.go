// Package reporting implements OptimizationReporter, the pass-manager
// observer that records what each MIR optimization pass changed so a
// compiler invocation can explain itself via mdc's --viz-mir. Promoted to
// a first-class package per the original Python implementation's
// mir/reporting module boundary (see original_source/machine_dialect/mir/
// reporting/__init__.py), rather than folding its bookkeeping into the
// optimizer itself.
package reporting

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PassResult records one optimization pass's effect on one function.
type PassResult struct {
	Function      string
	Pass          string
	InstrBefore   int
	InstrAfter    int
	Changed       int
	InstrsRemoved int
}

// OptimizationReporter accumulates PassResults across a whole compilation.
type OptimizationReporter struct {
	results []PassResult
}

// New creates an empty reporter.
func New() *OptimizationReporter {
	return &OptimizationReporter{}
}

// Record appends one pass's result.
func (r *OptimizationReporter) Record(res PassResult) {
	r.results = append(r.results, res)
}

// Results returns the accumulated results in recording order.
func (r *OptimizationReporter) Results() []PassResult {
	return r.results
}

// Formatter renders a reporter's accumulated results as a string.
type Formatter interface {
	Format(r *OptimizationReporter) string
}

// TextReportFormatter renders a human-readable, line-oriented summary.
type TextReportFormatter struct{}

func (TextReportFormatter) Format(r *OptimizationReporter) string {
	var b strings.Builder
	byFunc := map[string][]PassResult{}
	var order []string
	for _, res := range r.results {
		if _, ok := byFunc[res.Function]; !ok {
			order = append(order, res.Function)
		}
		byFunc[res.Function] = append(byFunc[res.Function], res)
	}
	sort.Strings(order)
	for _, fn := range order {
		fmt.Fprintf(&b, "function %s:\n", fn)
		for _, res := range byFunc[fn] {
			fmt.Fprintf(&b, "  %-20s %4d -> %4d instrs (%d changed, %d removed)\n",
				res.Pass, res.InstrBefore, res.InstrAfter, res.Changed, res.InstrsRemoved)
		}
	}
	return b.String()
}

// JSONReportFormatter renders the full result set as a JSON array.
type JSONReportFormatter struct{}

func (JSONReportFormatter) Format(r *OptimizationReporter) string {
	data, err := json.MarshalIndent(r.results, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// HTMLReportFormatter renders a minimal standalone HTML table. (mdc's
// --viz-mir writes the text format, not this one.)
type HTMLReportFormatter struct{}

func (HTMLReportFormatter) Format(r *OptimizationReporter) string {
	var b strings.Builder
	b.WriteString("<table><tr><th>function</th><th>pass</th><th>before</th><th>after</th><th>changed</th><th>removed</th></tr>\n")
	for _, res := range r.results {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>\n",
			res.Function, res.Pass, res.InstrBefore, res.InstrAfter, res.Changed, res.InstrsRemoved)
	}
	b.WriteString("</table>\n")
	return b.String()
}
