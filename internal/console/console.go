// Package console is the interactive surface where the operator reviews
// test results and enters grades.
package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"autojunit/internal/report"
	"autojunit/internal/submission"
	appErr "autojunit/pkg/errors"
)

const defaultMaxScore = 2

var (
	rule     = strings.Repeat("=", 80)
	dashRule = strings.Repeat("-", 80)
)

// CompileDecision is the operator's choice after a failed compile.
type CompileDecision string

const (
	// DecisionRecompile retries the compile after the operator edited the
	// staged sources by hand.
	DecisionRecompile CompileDecision = "recompile"
	// DecisionSkipTests proceeds to grading without a test run.
	DecisionSkipTests CompileDecision = "skip"
)

// Scores is the operator's grading decision for one submission.
type Scores struct {
	Task1   int
	Task2   int
	Task3   int
	Comment string
}

// ScoreProvider is the human input boundary of the grading pipeline.
type ScoreProvider interface {
	ShowSubmissions(subs []submission.Submission)
	ConfirmStart(count int) error
	ShowProcessing(sub submission.Submission, index, total int)
	ShowFlagged(sub submission.Submission, diagnostic string)
	ShowCompileFailure(sub submission.Submission, diagnostics string)
	PromptCompileRetry() (CompileDecision, error)
	ShowReport(sub submission.Submission, rep report.TestReport)
	RequestScores(sub submission.Submission) (Scores, error)
	ConfirmUngraded(sub submission.Submission, reason string) (bool, error)
	PauseBeforeNext() error
	ShowRunSummary(processed, flagged, skipped int, ledgerPath string)
}

type lineReader interface {
	ReadLine(prompt string) (string, error)
}

type readlineAdapter struct {
	rl *readline.Instance
}

func (a *readlineAdapter) ReadLine(prompt string) (string, error) {
	a.rl.SetPrompt(prompt)
	line, err := a.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Console implements ScoreProvider on the process terminal.
type Console struct {
	input    lineReader
	out      io.Writer
	closer   io.Closer
	maxScore int
}

// New creates a console backed by a readline terminal.
func New(maxScore int) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SetupFailed, "init console failed")
	}
	c := &Console{
		input:    &readlineAdapter{rl: rl},
		out:      rl.Stdout(),
		closer:   rl,
		maxScore: maxScore,
	}
	if c.maxScore <= 0 {
		c.maxScore = defaultMaxScore
	}
	return c, nil
}

// Close releases the terminal.
func (c *Console) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// ShowSubmissions renders the scan result table.
func (c *Console) ShowSubmissions(subs []submission.Submission) {
	c.printLine("")
	c.printLine("%s", rule)
	c.printLine("%-30s %-20s %-30s", "Student Name", "Matriculation Nr", "Submission Type")
	c.printLine("%s", rule)
	for _, sub := range subs {
		matric := sub.Matriculation
		if matric == "" {
			matric = "not found"
		}
		c.printLine("%-30s %-20s %-30s", sub.StudentName, matric, string(sub.Kind))
	}
	c.printLine("%s", rule)
}

// ConfirmStart waits for the operator before the batch begins.
func (c *Console) ConfirmStart(count int) error {
	c.printLine("Found %d submission(s) to process.", count)
	_, err := c.input.ReadLine("Press Enter to start grading submissions... ")
	return promptErr(err)
}

// ShowProcessing announces the submission being worked on.
func (c *Console) ShowProcessing(sub submission.Submission, index, total int) {
	matric := sub.Matriculation
	if matric == "" {
		matric = "no matriculation nr"
	}
	c.printLine("")
	c.printLine("%s", rule)
	c.printLine("Processing %d/%d: %s - %s", index, total, sub.StudentName, matric)
	c.printLine("%s", rule)
}

// ShowFlagged reports a submission that needs manual attention before it
// can be graded. It stays in the scan directory untouched.
func (c *Console) ShowFlagged(sub submission.Submission, diagnostic string) {
	c.printLine("")
	c.printLine("FLAGGED %s: %s", sub.FolderName, diagnostic)
	c.printLine("The submission stays in place; fix it and rerun to grade it.")
}

// ShowCompileFailure prints the compiler diagnostics.
func (c *Console) ShowCompileFailure(sub submission.Submission, diagnostics string) {
	c.printLine("")
	c.printLine("Compilation failed for %s:", sub.StudentName)
	for _, line := range strings.Split(strings.TrimRight(diagnostics, "\n"), "\n") {
		c.printLine("  %s", line)
	}
}

// PromptCompileRetry asks how to proceed after a failed compile. The
// staged sources stay on disk so the operator can fix them by hand before
// choosing to recompile.
func (c *Console) PromptCompileRetry() (CompileDecision, error) {
	c.printLine("")
	c.printLine("Options:")
	c.printLine("  1. Recompile (after manual fixes)")
	c.printLine("  2. Skip tests and continue to grading")
	for {
		line, err := c.input.ReadLine("Choice: ")
		if err != nil {
			return "", promptErr(err)
		}
		switch line {
		case "1":
			return DecisionRecompile, nil
		case "2":
			return DecisionSkipTests, nil
		}
		c.printLine("Enter 1 or 2.")
	}
}

// ShowReport prints the per-task outcomes of a test run.
func (c *Console) ShowReport(sub submission.Submission, rep report.TestReport) {
	c.printLine("")
	c.printLine("%s", dashRule)
	c.printLine("Test results for %s:", sub.StudentName)
	for _, oc := range rep.Outcomes {
		status := "PASS"
		if !oc.Passed {
			status = "FAIL"
		}
		if oc.Message != "" {
			c.printLine("  [%s] %s: %s", status, oc.Name, oc.Message)
		} else {
			c.printLine("  [%s] %s", status, oc.Name)
		}
	}
	c.printLine("Result: %s", rep.Summary())
	c.printLine("%s", dashRule)
}

// RequestScores prompts for the three task scores and a comment. Entering
// "b" or "0" at the comment prompt discards the scores and starts over.
func (c *Console) RequestScores(sub submission.Submission) (Scores, error) {
	c.printLine("")
	c.printLine("Enter grades for %s:", sub.StudentName)
	for {
		task1, err := c.promptScore("Grade for Task 1: ")
		if err != nil {
			return Scores{}, err
		}
		task2, err := c.promptScore("Grade for Task 2: ")
		if err != nil {
			return Scores{}, err
		}
		task3, err := c.promptScore("Grade for Task 3: ")
		if err != nil {
			return Scores{}, err
		}

		c.printLine("Enter an optional comment (type 'b' or '0' to re-enter grades):")
		comment, err := c.input.ReadLine("Comment: ")
		if err != nil {
			return Scores{}, promptErr(err)
		}
		if comment == "b" || comment == "0" {
			c.printLine("Re-entering grades.")
			continue
		}
		return Scores{Task1: task1, Task2: task2, Task3: task3, Comment: comment}, nil
	}
}

func (c *Console) promptScore(prompt string) (int, error) {
	for {
		line, err := c.input.ReadLine(prompt)
		if err != nil {
			return 0, promptErr(err)
		}
		score, convErr := strconv.Atoi(line)
		if convErr != nil || score < 0 || score > c.maxScore {
			c.printLine("Enter a number between 0 and %d.", c.maxScore)
			continue
		}
		return score, nil
	}
}

// ConfirmUngraded asks whether to grade a submission that cannot be
// matched against the ledger. Returns true to proceed.
func (c *Console) ConfirmUngraded(sub submission.Submission, reason string) (bool, error) {
	c.printLine("")
	c.printLine("%s: %s", sub.FolderName, reason)
	for {
		line, err := c.input.ReadLine("Grade it now anyway? [y/N]: ")
		if err != nil {
			return false, promptErr(err)
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		c.printLine("Answer y or n.")
	}
}

// PauseBeforeNext holds the console until the operator is ready for the
// next submission.
func (c *Console) PauseBeforeNext() error {
	c.printLine("")
	_, err := c.input.ReadLine("Press Enter to continue to next student... ")
	return promptErr(err)
}

// ShowRunSummary prints the end-of-batch totals.
func (c *Console) ShowRunSummary(processed, flagged, skipped int, ledgerPath string) {
	c.printLine("")
	c.printLine("%s", rule)
	c.printLine("Grading session completed: %d graded, %d flagged, %d skipped.", processed, flagged, skipped)
	c.printLine("Results saved to: %s", ledgerPath)
	c.printLine("%s", rule)
}

func (c *Console) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

func promptErr(err error) error {
	if err == nil {
		return nil
	}
	return appErr.Wrapf(err, appErr.InternalError, "console input closed")
}
