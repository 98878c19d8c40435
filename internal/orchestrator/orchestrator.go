package orchestrator

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"autojunit/internal/console"
	"autojunit/internal/ledger"
	"autojunit/internal/report"
	"autojunit/internal/staging"
	"autojunit/internal/submission"
	appErr "autojunit/pkg/errors"
	"autojunit/pkg/utils/contextkey"
	"autojunit/pkg/utils/logger"
)

// Orchestrator drives one grading batch. Submissions advance strictly
// forward through Pending, Staged, Compiled or CompileFailed, Tested,
// Graded and Archived; extraction failures and unrecognized kinds are
// absorbing and leave the submission in the scan directory.
type Orchestrator struct {
	stager   Stager
	tool     Toolchain
	grades   GradeSink
	mover    Archiver
	operator console.ScoreProvider
	harness  string
	declared []string
}

// New creates an orchestrator with required dependencies. harnessPath is
// the instructor test source staged into every workspace.
func New(
	stager Stager,
	tool Toolchain,
	grades GradeSink,
	mover Archiver,
	operator console.ScoreProvider,
	harnessPath string,
) *Orchestrator {
	return &Orchestrator{
		stager:   stager,
		tool:     tool,
		grades:   grades,
		mover:    mover,
		operator: operator,
		harness:  harnessPath,
	}
}

// SetDeclaredTests fixes the expected test case list instead of
// discovering it from the harness source.
func (o *Orchestrator) SetDeclaredTests(names []string) {
	o.declared = names
}

// Run processes the scanned submissions in order. Per-submission failures
// are contained; only setup, console and ledger failures end the run
// early. The returned summary is valid either way.
func (o *Orchestrator) Run(ctx context.Context, subs []submission.Submission) (RunSummary, error) {
	summary := RunSummary{Total: len(subs)}

	if err := o.verifySetup(ctx); err != nil {
		return summary, err
	}

	o.operator.ShowSubmissions(subs)

	pending := make([]*submission.Submission, 0, len(subs))
	for i := range subs {
		sub := &subs[i]
		if sub.Kind == submission.KindUnknown {
			logger.Warn(ctx, "unrecognized submission kind",
				zap.String("folder", sub.FolderName))
			summary.Skipped++
			continue
		}
		pending = append(pending, sub)
	}

	if err := o.operator.ConfirmStart(len(pending)); err != nil {
		return summary, err
	}

	for i, sub := range pending {
		subCtx := context.WithValue(ctx, contextkey.Submission, sub.FolderName)
		o.operator.ShowProcessing(*sub, i+1, len(pending))

		handled, err := o.resume(subCtx, sub, &summary)
		if err != nil {
			return summary, err
		}
		if !handled {
			if err := o.processOne(subCtx, sub, &summary); err != nil {
				return summary, err
			}
		}

		if i < len(pending)-1 {
			if err := o.operator.PauseBeforeNext(); err != nil {
				return summary, err
			}
		}
	}

	o.operator.ShowRunSummary(summary.Graded+summary.Resumed, summary.Flagged, summary.Skipped, o.grades.Path())
	logger.Info(ctx, "grading run finished",
		zap.Int("graded", summary.Graded),
		zap.Int("resumed", summary.Resumed),
		zap.Int("flagged", summary.Flagged),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// verifySetup checks the toolchain and harness before anything durable
// happens. A failure here aborts the batch with no side effects.
func (o *Orchestrator) verifySetup(ctx context.Context) error {
	if o.stager == nil || o.tool == nil || o.grades == nil || o.mover == nil || o.operator == nil {
		return appErr.New(appErr.SetupFailed).WithMessage("orchestrator dependencies are not initialized")
	}
	if err := o.tool.VerifySetup(ctx); err != nil {
		return err
	}
	if _, err := os.Stat(o.harness); err != nil {
		return appErr.Wrapf(err, appErr.HarnessAbsent, "test harness not found at %s", o.harness)
	}
	if len(o.declared) == 0 {
		declared, err := report.DiscoverDeclared(o.harness)
		if err != nil {
			return err
		}
		o.declared = declared
		logger.Info(ctx, "test cases discovered",
			zap.Strings("cases", declared))
	}
	return nil
}

// resume decides whether a submission still needs grading. It handles the
// crash window between ledger write and archive move: a ledger row with
// the folder still present means only the move is outstanding.
func (o *Orchestrator) resume(ctx context.Context, sub *submission.Submission, summary *RunSummary) (bool, error) {
	if sub.Matriculation == "" {
		if o.grades.Len() == 0 {
			return false, nil
		}
		ok, err := o.operator.ConfirmUngraded(*sub,
			"no matriculation number found, cannot check it against the existing ledger")
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
		logger.Warn(ctx, "submission skipped by operator",
			zap.String("folder", sub.FolderName))
		summary.Skipped++
		return true, nil
	}

	if _, found := o.grades.Lookup(sub.Matriculation); !found {
		return false, nil
	}

	sub.Status = submission.StatusGraded
	logger.Info(ctx, "already graded, archiving only",
		zap.String("matriculation", sub.Matriculation))
	if err := o.mover.Move(ctx, sub.RootPath); err != nil {
		logger.Error(ctx, "archive move failed", zap.Error(err))
		summary.Flagged++
		return true, nil
	}
	sub.Status = submission.StatusArchived
	summary.Resumed++
	return true, nil
}

// processOne runs the full stage-compile-test-grade-archive sequence for
// a single submission.
func (o *Orchestrator) processOne(ctx context.Context, sub *submission.Submission, summary *RunSummary) error {
	ws, err := o.stager.Acquire(ctx, *sub)
	if err != nil {
		if appErr.IsFatal(err) {
			return err
		}
		if isExtractionFailure(err) {
			sub.Status = submission.StatusExtractionError
		}
		o.operator.ShowFlagged(*sub, err.Error())
		o.operator.ShowReport(*sub, report.SkippedRun(o.declared, "submission could not be staged"))
		logger.Warn(ctx, "submission flagged", zap.Error(err))
		summary.Flagged++
		return nil
	}
	defer o.stager.Release(ws)
	sub.Status = submission.StatusStaged

	compileRes, skipTests, err := o.compileLoop(ctx, sub, ws)
	if err != nil {
		return err
	}

	var rep report.TestReport
	if skipTests {
		rep = report.SkippedRun(o.declared, "compilation failed")
	} else {
		raw, exit, runErr := o.tool.RunTests(ctx, ws)
		if runErr != nil {
			return runErr
		}
		rep = report.Parse(raw, o.declared, exit)
	}
	sub.Status = submission.StatusTested
	o.operator.ShowReport(*sub, rep)

	scores, err := o.operator.RequestScores(*sub)
	if err != nil {
		return err
	}

	comment := scores.Comment
	if skipTests && comment == "" {
		comment = skipComment(compileRes)
	}

	rec := ledger.GradeRecord{
		StudentName:   sub.StudentName,
		Matriculation: sub.Matriculation,
		Task1:         scores.Task1,
		Task2:         scores.Task2,
		Task3:         scores.Task3,
		Comment:       comment,
		TestSummary:   rep.Summary(),
	}
	// Ledger write failures halt the whole run; rows appended earlier are
	// already flushed and stay valid for resume.
	if err := o.grades.Append(ctx, rec); err != nil {
		return err
	}
	sub.Status = submission.StatusGraded
	summary.Graded++

	// The ledger row is durable at this point, so a failed move is
	// recoverable: the next run resume-matches the row and retries it.
	if err := o.mover.Move(ctx, sub.RootPath); err != nil {
		logger.Error(ctx, "archive move failed", zap.Error(err))
		summary.Flagged++
		return nil
	}
	sub.Status = submission.StatusArchived
	return nil
}

// compileLoop compiles the workspace, letting the operator fix staged
// sources and recompile, or give up on the tests. Returns skip=true when
// grading should proceed without a test run.
func (o *Orchestrator) compileLoop(ctx context.Context, sub *submission.Submission, ws *staging.Workspace) (report.CompileResult, bool, error) {
	for {
		res, err := o.tool.Compile(ctx, ws)
		if err != nil {
			return res, false, err
		}
		if res.OK {
			sub.Status = submission.StatusCompiled
			return res, false, nil
		}

		sub.Status = submission.StatusCompileFailed
		o.operator.ShowCompileFailure(*sub, res.Output)
		decision, err := o.operator.PromptCompileRetry()
		if err != nil {
			return res, false, err
		}
		if decision == console.DecisionSkipTests {
			return res, true, nil
		}
		logger.Info(ctx, "recompiling after manual fixes",
			zap.String("workspace", ws.Dir))
	}
}

func isExtractionFailure(err error) bool {
	switch appErr.GetCode(err) {
	case appErr.ExtractionFailed, appErr.UnsupportedArchive, appErr.ArchiveEntryUnsafe, appErr.ArchiveCorrupt:
		return true
	}
	return false
}

// skipComment carries the compile diagnostic into the ledger when the
// operator leaves the comment empty on a skipped test run.
func skipComment(res report.CompileResult) string {
	line := strings.TrimSpace(res.Output)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return "did not compile"
	}
	return "did not compile: " + line
}
