// Package orchestrator sequences the grading pipeline across a batch of
// submissions and implements the resume and partial-failure policy.
package orchestrator

import (
	"context"

	"autojunit/internal/ledger"
	"autojunit/internal/report"
	"autojunit/internal/staging"
	"autojunit/internal/submission"
)

// Stager prepares and tears down isolated workspaces.
type Stager interface {
	Acquire(ctx context.Context, sub submission.Submission) (*staging.Workspace, error)
	Release(ws *staging.Workspace)
}

// Toolchain compiles a staged workspace and runs the test harness on it.
type Toolchain interface {
	VerifySetup(ctx context.Context) error
	Compile(ctx context.Context, ws *staging.Workspace) (report.CompileResult, error)
	RunTests(ctx context.Context, ws *staging.Workspace) (string, report.Exit, error)
}

// GradeSink is the durable grade store consulted for resume decisions.
// Append must flush the record to disk before returning.
type GradeSink interface {
	Append(ctx context.Context, rec ledger.GradeRecord) error
	Lookup(matric string) (ledger.GradeRecord, bool)
	Len() int
	Path() string
}

// Archiver moves a finished submission root into the done area.
type Archiver interface {
	Move(ctx context.Context, srcPath string) error
}

// RunSummary totals one orchestrator batch.
type RunSummary struct {
	// Total is the number of scanned entries handed to the run.
	Total int
	// Graded submissions were compiled, scored and ledger-recorded now.
	Graded int
	// Resumed submissions had a ledger row already and were only archived.
	Resumed int
	// Flagged submissions need manual attention and stay in the scan
	// directory.
	Flagged int
	// Skipped submissions were not graded: unrecognized kind, or the
	// operator declined one that cannot be resume-matched.
	Skipped int
}
