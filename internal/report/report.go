// Package report defines compile and test outcome types and parses the
// console launcher output into a structured test report.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Exit classifies how the test launcher process ended.
type Exit string

const (
	// ExitNormal means the launcher ran to completion and produced a report.
	// A non-zero exit code still counts as normal when it only signals
	// failed test cases.
	ExitNormal Exit = "normal"
	// ExitCrash means the launcher died before producing a usable report.
	ExitCrash Exit = "crash"
	// ExitTimeout means the launcher was killed after the test time limit.
	ExitTimeout Exit = "timeout"
	// ExitSkipped means the launcher was never started for this submission.
	ExitSkipped Exit = "skipped"
)

// CompileResult captures one compiler invocation over a staged workspace.
type CompileResult struct {
	OK        bool
	ExitCode  int
	Output    string   // compiler diagnostics, stderr first
	Artifacts []string // produced class files, absolute paths
	Duration  time.Duration
}

// TestOutcome is the verdict for a single declared test case.
type TestOutcome struct {
	Name    string
	Passed  bool
	Message string
}

// TestReport aggregates the outcomes of one launcher run. Every declared
// test case appears exactly once, in declaration order.
type TestReport struct {
	Outcomes []TestOutcome
	Exit     Exit
	Raw      string
}

// PassedCount returns the number of passed test cases.
func (r TestReport) PassedCount() int {
	n := 0
	for _, oc := range r.Outcomes {
		if oc.Passed {
			n++
		}
	}
	return n
}

// Total returns the number of declared test cases.
func (r TestReport) Total() int {
	return len(r.Outcomes)
}

// AllPassed reports whether every declared test case passed.
func (r TestReport) AllPassed() bool {
	return r.Exit == ExitNormal && r.PassedCount() == r.Total()
}

// Summary renders a single-line digest for the grade ledger.
func (r TestReport) Summary() string {
	var failed []string
	for _, oc := range r.Outcomes {
		if !oc.Passed {
			failed = append(failed, oc.Name)
		}
	}
	s := fmt.Sprintf("%d/%d passed", r.PassedCount(), r.Total())
	switch r.Exit {
	case ExitTimeout:
		return s + " (run timed out)"
	case ExitCrash:
		return s + " (run crashed)"
	case ExitSkipped:
		return s + " (tests not run)"
	}
	if len(failed) > 0 {
		s += "; failed: " + strings.Join(failed, ", ")
	}
	return s
}

// treeLinePattern matches one test tree node printed by the console
// launcher, in both the unicode and the ascii theme. Group 1 is the node
// label, group 2 the status marker, group 3 an optional failure message.
var treeLinePattern = regexp.MustCompile(`(?:[├└]─|\+--)\s+(.+?)\s+(✔|✘|\[OK\]|\[X\])(?:\s+(.*))?$`)

// methodIDPattern matches the method part of a unique test identifier in
// the launcher failure listing, e.g. "JUnit Jupiter:HomeworkTest:task2()".
var methodIDPattern = regexp.MustCompile(`:([A-Za-z_$][A-Za-z0-9_$]*)\(\)$`)

// Parse builds a TestReport for the declared test cases from the raw
// launcher output. Parsing is total: output that reports nothing yields a
// report where every declared case failed as unreported.
func Parse(raw string, declared []string, exit Exit) TestReport {
	rep := TestReport{Exit: exit, Raw: raw}

	if exit != ExitNormal {
		reason := "test run crashed before reporting results"
		if exit == ExitTimeout {
			reason = "test run timed out"
		}
		for _, name := range declared {
			rep.Outcomes = append(rep.Outcomes, TestOutcome{Name: name, Message: reason})
		}
		return rep
	}

	found := parseTree(raw)
	attachFailureDetails(raw, found)

	for _, name := range declared {
		oc, ok := found[name]
		if !ok {
			oc = TestOutcome{Name: name, Message: "not reported by test run"}
		}
		rep.Outcomes = append(rep.Outcomes, oc)
	}
	return rep
}

// SkippedRun builds the report for a submission whose tests never ran,
// for example after the operator chose to grade past a failed compile.
// Every declared case fails with the given reason.
func SkippedRun(declared []string, reason string) TestReport {
	rep := TestReport{Exit: ExitSkipped}
	for _, name := range declared {
		rep.Outcomes = append(rep.Outcomes, TestOutcome{Name: name, Message: reason})
	}
	return rep
}

// parseTree collects per-method outcomes from the tree section. Container
// nodes carry no parameter list and are skipped. A method reported more
// than once fails if any instance failed.
func parseTree(raw string) map[string]TestOutcome {
	found := make(map[string]TestOutcome)
	for _, line := range strings.Split(raw, "\n") {
		m := treeLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.TrimSpace(m[1])
		paren := strings.Index(label, "(")
		if paren < 0 {
			continue
		}
		name := label[:paren]
		passed := m[2] == "✔" || m[2] == "[OK]"
		message := strings.TrimSpace(m[3])

		prev, seen := found[name]
		if !seen {
			found[name] = TestOutcome{Name: name, Passed: passed, Message: message}
			continue
		}
		if prev.Passed && !passed {
			found[name] = TestOutcome{Name: name, Passed: false, Message: message}
		}
	}
	return found
}

// attachFailureDetails walks the failure listing and fills in messages the
// tree section left empty. The listing names each failed test by its
// unique identifier and prints the exception on the "=>" line.
func attachFailureDetails(raw string, found map[string]TestOutcome) {
	current := ""
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := methodIDPattern.FindStringSubmatch(trimmed); m != nil {
			current = m[1]
			continue
		}
		if current == "" || !strings.HasPrefix(trimmed, "=>") {
			continue
		}
		if oc, ok := found[current]; ok && !oc.Passed && oc.Message == "" {
			oc.Message = strings.TrimSpace(strings.TrimPrefix(trimmed, "=>"))
			found[current] = oc
		}
		current = ""
	}
}
