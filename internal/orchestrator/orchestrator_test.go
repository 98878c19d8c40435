package orchestrator_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"autojunit/internal/archive"
	"autojunit/internal/console"
	"autojunit/internal/ledger"
	"autojunit/internal/orchestrator"
	"autojunit/internal/report"
	"autojunit/internal/staging"
	"autojunit/internal/submission"
	appErr "autojunit/pkg/errors"
)

const harnessSource = `import org.junit.jupiter.api.Test;

public class HomeworkTest {

    @Test
    void task1() {
    }

    @Test
    void task2() {
    }

    @Test
    void task3() {
    }
}
`

const passingRun = "├─ task1() ✔\n├─ task2() ✔\n├─ task3() ✔\n"

type fakeStager struct {
	errs     map[string]error
	acquired []string
	released int
}

func (f *fakeStager) Acquire(ctx context.Context, sub submission.Submission) (*staging.Workspace, error) {
	if err := f.errs[sub.FolderName]; err != nil {
		return nil, err
	}
	f.acquired = append(f.acquired, sub.FolderName)
	return &staging.Workspace{CycleID: "cycle-" + sub.FolderName, Dir: "/tmp/" + sub.FolderName}, nil
}

func (f *fakeStager) Release(ws *staging.Workspace) {
	f.released++
}

type fakeToolchain struct {
	verifyErr    error
	compileSeq   []report.CompileResult
	compileCalls int
	sources      [][]string
	runRaw       string
	runExit      report.Exit
	runErr       error
	runCalls     int
}

func (f *fakeToolchain) VerifySetup(ctx context.Context) error {
	return f.verifyErr
}

func (f *fakeToolchain) Compile(ctx context.Context, ws *staging.Workspace) (report.CompileResult, error) {
	f.compileCalls++
	names := make([]string, 0, len(ws.SourceFiles))
	for _, src := range ws.SourceFiles {
		names = append(names, filepath.Base(src))
	}
	f.sources = append(f.sources, names)
	if idx := f.compileCalls - 1; idx < len(f.compileSeq) {
		return f.compileSeq[idx], nil
	}
	return report.CompileResult{OK: true}, nil
}

func (f *fakeToolchain) RunTests(ctx context.Context, ws *staging.Workspace) (string, report.Exit, error) {
	f.runCalls++
	if f.runErr != nil {
		return "", report.ExitCrash, f.runErr
	}
	exit := f.runExit
	if exit == "" {
		exit = report.ExitNormal
	}
	return f.runRaw, exit, nil
}

type fakeSink struct {
	rows      []ledger.GradeRecord
	index     map[string]ledger.GradeRecord
	appendErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{index: make(map[string]ledger.GradeRecord)}
}

func (f *fakeSink) seed(rec ledger.GradeRecord) {
	f.rows = append(f.rows, rec)
	if rec.Matriculation != "" {
		f.index[rec.Matriculation] = rec
	}
}

func (f *fakeSink) Append(ctx context.Context, rec ledger.GradeRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.seed(rec)
	return nil
}

func (f *fakeSink) Lookup(matric string) (ledger.GradeRecord, bool) {
	rec, ok := f.index[matric]
	return rec, ok
}

func (f *fakeSink) Len() int {
	return len(f.rows)
}

func (f *fakeSink) Path() string {
	return "/tmp/grades.csv"
}

type fakeMover struct {
	errs  map[string]error
	moved []string
}

func (f *fakeMover) Move(ctx context.Context, srcPath string) error {
	if err := f.errs[filepath.Base(srcPath)]; err != nil {
		return err
	}
	f.moved = append(f.moved, srcPath)
	return nil
}

type fakeOperator struct {
	scoreSeq    []console.Scores
	scoreCalls  int
	decisionSeq []console.CompileDecision
	decisionIdx int
	confirm     bool
	startCount  int
	startCalls  int
	flagged     []string
	reports     []report.TestReport
	pauses      int
	summarySeen bool
}

func (f *fakeOperator) ShowSubmissions(subs []submission.Submission) {}

func (f *fakeOperator) ConfirmStart(count int) error {
	f.startCalls++
	f.startCount = count
	return nil
}

func (f *fakeOperator) ShowProcessing(sub submission.Submission, index, total int) {}

func (f *fakeOperator) ShowFlagged(sub submission.Submission, diagnostic string) {
	f.flagged = append(f.flagged, sub.FolderName)
}

func (f *fakeOperator) ShowCompileFailure(sub submission.Submission, diagnostics string) {}

func (f *fakeOperator) PromptCompileRetry() (console.CompileDecision, error) {
	if f.decisionIdx < len(f.decisionSeq) {
		d := f.decisionSeq[f.decisionIdx]
		f.decisionIdx++
		return d, nil
	}
	return console.DecisionSkipTests, nil
}

func (f *fakeOperator) ShowReport(sub submission.Submission, rep report.TestReport) {
	f.reports = append(f.reports, rep)
}

func (f *fakeOperator) RequestScores(sub submission.Submission) (console.Scores, error) {
	f.scoreCalls++
	if idx := f.scoreCalls - 1; idx < len(f.scoreSeq) {
		return f.scoreSeq[idx], nil
	}
	return console.Scores{Task1: 1, Task2: 1, Task3: 1}, nil
}

func (f *fakeOperator) ConfirmUngraded(sub submission.Submission, reason string) (bool, error) {
	return f.confirm, nil
}

func (f *fakeOperator) PauseBeforeNext() error {
	f.pauses++
	return nil
}

func (f *fakeOperator) ShowRunSummary(processed, flagged, skipped int, ledgerPath string) {
	f.summarySeen = true
}

type fixture struct {
	stager *fakeStager
	tool   *fakeToolchain
	sink   *fakeSink
	mover  *fakeMover
	op     *fakeOperator
	orch   *orchestrator.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	harness := filepath.Join(t.TempDir(), "HomeworkTest.java")
	if err := os.WriteFile(harness, []byte(harnessSource), 0644); err != nil {
		t.Fatalf("write harness: %v", err)
	}

	f := &fixture{
		stager: &fakeStager{errs: map[string]error{}},
		tool:   &fakeToolchain{runRaw: passingRun},
		sink:   newFakeSink(),
		mover:  &fakeMover{errs: map[string]error{}},
		op:     &fakeOperator{},
	}
	f.orch = orchestrator.New(f.stager, f.tool, f.sink, f.mover, f.op, harness)
	return f
}

func folderSub(name, matric string) submission.Submission {
	folder := name
	if matric != "" {
		folder = name + "_" + matric
	}
	return submission.Submission{
		FolderName:    folder,
		RootPath:      filepath.Join("/hw", folder),
		StudentName:   name,
		Matriculation: matric,
		Kind:          submission.KindFolder,
		Status:        submission.StatusPending,
	}
}

func TestRunGradesAndArchives(t *testing.T) {
	f := newFixture(t)
	f.op.scoreSeq = []console.Scores{
		{Task1: 2, Task2: 1, Task3: 0, Comment: "solid attempt"},
		{Task1: 2, Task2: 2, Task3: 2},
	}
	subs := []submission.Submission{
		folderSub("Ada Lovelace", "12345678"),
		folderSub("Grace Hopper", "87654321"),
	}

	summary, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Graded != 2 || summary.Flagged != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.sink.rows) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(f.sink.rows))
	}
	row := f.sink.rows[0]
	if row.StudentName != "Ada Lovelace" || row.Matriculation != "12345678" {
		t.Fatalf("unexpected first row: %+v", row)
	}
	if row.Task1 != 2 || row.Task2 != 1 || row.Task3 != 0 || row.Comment != "solid attempt" {
		t.Fatalf("scores not recorded: %+v", row)
	}
	if row.TestSummary != "3/3 passed" {
		t.Fatalf("unexpected test summary: %q", row.TestSummary)
	}
	if len(f.mover.moved) != 2 {
		t.Fatalf("expected 2 moves, got %v", f.mover.moved)
	}
	if f.stager.released != 2 {
		t.Fatalf("expected 2 workspace releases, got %d", f.stager.released)
	}
	if f.op.pauses != 1 {
		t.Fatalf("expected one pause between two submissions, got %d", f.op.pauses)
	}
	if subs[0].Status != submission.StatusArchived || subs[1].Status != submission.StatusArchived {
		t.Fatalf("expected archived statuses, got %s and %s", subs[0].Status, subs[1].Status)
	}
	if !f.op.summarySeen {
		t.Fatal("run summary was not shown")
	}
}

func TestRunResumesLedgerRows(t *testing.T) {
	f := newFixture(t)
	f.sink.seed(ledger.GradeRecord{StudentName: "Ada Lovelace", Matriculation: "12345678", Task1: 2})
	subs := []submission.Submission{folderSub("Ada Lovelace", "12345678")}

	summary, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Resumed != 1 || summary.Graded != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.stager.acquired) != 0 {
		t.Fatalf("resumed submission must not be staged, got %v", f.stager.acquired)
	}
	if len(f.sink.rows) != 1 {
		t.Fatalf("resume must not append rows, got %d", len(f.sink.rows))
	}
	if len(f.mover.moved) != 1 {
		t.Fatalf("expected the move to be re-applied, got %v", f.mover.moved)
	}
	if subs[0].Status != submission.StatusArchived {
		t.Fatalf("expected archived, got %s", subs[0].Status)
	}
}

func TestRunFlagsExtractionFailure(t *testing.T) {
	f := newFixture(t)
	bad := folderSub("Alan Turing", "55556666")
	bad.Kind = submission.KindArchive
	f.stager.errs[bad.FolderName] = appErr.Newf(appErr.ArchiveCorrupt, "inflate archive failed")
	good := folderSub("Grace Hopper", "87654321")
	subs := []submission.Submission{bad, good}

	summary, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Flagged != 1 || summary.Graded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.op.flagged) != 1 || f.op.flagged[0] != bad.FolderName {
		t.Fatalf("expected %s flagged, got %v", bad.FolderName, f.op.flagged)
	}
	if subs[0].Status != submission.StatusExtractionError {
		t.Fatalf("expected extraction error status, got %s", subs[0].Status)
	}
	for _, moved := range f.mover.moved {
		if filepath.Base(moved) == bad.FolderName {
			t.Fatal("flagged submission must not be archived")
		}
	}
	if len(f.sink.rows) != 1 || f.sink.rows[0].Matriculation != "87654321" {
		t.Fatalf("only the good submission may be graded, got %+v", f.sink.rows)
	}
}

func TestRunSkipsUnknownKind(t *testing.T) {
	f := newFixture(t)
	stray := submission.Submission{
		FolderName: "notes.docx",
		RootPath:   "/hw/notes.docx",
		Kind:       submission.KindUnknown,
		Status:     submission.StatusPending,
	}

	summary, err := f.orch.Run(context.Background(), []submission.Submission{stray})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Skipped != 1 || summary.Graded != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if f.op.startCount != 0 {
		t.Fatalf("unknown entries must not enter the batch, got count %d", f.op.startCount)
	}
	if len(f.stager.acquired) != 0 || len(f.mover.moved) != 0 {
		t.Fatal("unknown entries must not be staged or archived")
	}
}

func TestCompileRetryThenSkip(t *testing.T) {
	f := newFixture(t)
	f.tool.compileSeq = []report.CompileResult{
		{OK: false, ExitCode: 1, Output: "Main.java:3: error: ';' expected\n1 error\n"},
		{OK: false, ExitCode: 1, Output: "Main.java:3: error: ';' expected\n1 error\n"},
	}
	f.op.decisionSeq = []console.CompileDecision{console.DecisionRecompile, console.DecisionSkipTests}
	subs := []submission.Submission{folderSub("Ada Lovelace", "12345678")}

	summary, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if f.tool.compileCalls != 2 {
		t.Fatalf("expected 2 compile attempts, got %d", f.tool.compileCalls)
	}
	if f.tool.runCalls != 0 {
		t.Fatalf("tests must not run after skip, got %d runs", f.tool.runCalls)
	}
	if summary.Graded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	row := f.sink.rows[0]
	if row.TestSummary != "0/3 passed (tests not run)" {
		t.Fatalf("unexpected test summary: %q", row.TestSummary)
	}
	if row.Comment != "did not compile: Main.java:3: error: ';' expected" {
		t.Fatalf("compile diagnostic not preserved: %q", row.Comment)
	}
	if len(f.mover.moved) != 1 {
		t.Fatalf("skipped-tests submission must still be archived, got %v", f.mover.moved)
	}
}

func TestCompileRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	f.tool.compileSeq = []report.CompileResult{
		{OK: false, ExitCode: 1, Output: "1 error"},
		{OK: true},
	}
	f.op.decisionSeq = []console.CompileDecision{console.DecisionRecompile}
	subs := []submission.Submission{folderSub("Ada Lovelace", "12345678")}

	summary, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if f.tool.compileCalls != 2 || f.tool.runCalls != 1 {
		t.Fatalf("expected recompile then run, got %d compiles %d runs", f.tool.compileCalls, f.tool.runCalls)
	}
	if summary.Graded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if f.sink.rows[0].TestSummary != "3/3 passed" {
		t.Fatalf("unexpected test summary: %q", f.sink.rows[0].TestSummary)
	}
}

func TestMissingMatriculationNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	f.sink.seed(ledger.GradeRecord{StudentName: "Ada Lovelace", Matriculation: "12345678"})
	f.op.confirm = false
	subs := []submission.Submission{folderSub("Grace Hopper", "")}

	summary, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Skipped != 1 || len(f.stager.acquired) != 0 {
		t.Fatalf("declined submission must be skipped, summary %+v", summary)
	}

	f = newFixture(t)
	f.sink.seed(ledger.GradeRecord{StudentName: "Ada Lovelace", Matriculation: "12345678"})
	f.op.confirm = true
	subs = []submission.Submission{folderSub("Grace Hopper", "")}

	summary, err = f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Graded != 1 {
		t.Fatalf("confirmed submission must be graded, summary %+v", summary)
	}
	if len(f.sink.rows) != 2 || f.sink.rows[1].StudentName != "Grace Hopper" {
		t.Fatalf("unexpected rows: %+v", f.sink.rows)
	}
}

func TestMissingMatriculationFreshLedger(t *testing.T) {
	f := newFixture(t)
	f.op.confirm = false
	subs := []submission.Submission{folderSub("Grace Hopper", "")}

	summary, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Nothing to resume against, so no confirmation round trip is needed.
	if summary.Graded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestLedgerFailureHaltsRun(t *testing.T) {
	f := newFixture(t)
	f.sink.appendErr = appErr.Newf(appErr.LedgerAppendFailed, "disk full")
	subs := []submission.Submission{
		folderSub("Ada Lovelace", "12345678"),
		folderSub("Grace Hopper", "87654321"),
	}

	summary, err := f.orch.Run(context.Background(), subs)
	if err == nil {
		t.Fatal("expected ledger failure to halt the run")
	}
	if appErr.GetCode(err) != appErr.LedgerAppendFailed {
		t.Fatalf("unexpected code: %d", appErr.GetCode(err))
	}
	if summary.Graded != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.stager.acquired) != 1 {
		t.Fatalf("second submission must not start after halt, got %v", f.stager.acquired)
	}
	if len(f.mover.moved) != 0 {
		t.Fatal("nothing may be archived without a ledger row")
	}
}

func TestMoveFailureIsContained(t *testing.T) {
	f := newFixture(t)
	sub := folderSub("Ada Lovelace", "12345678")
	f.mover.errs[sub.FolderName] = appErr.Newf(appErr.MoveFailed, "rename failed")

	summary, err := f.orch.Run(context.Background(), []submission.Submission{sub, folderSub("Grace Hopper", "87654321")})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Graded != 2 || summary.Flagged != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.sink.rows) != 2 {
		t.Fatalf("grades must survive a failed move, got %d rows", len(f.sink.rows))
	}
}

func TestSetupFailureAbortsBeforeBatch(t *testing.T) {
	f := newFixture(t)
	f.tool.verifyErr = appErr.Newf(appErr.CompilerNotFound, "javac not found")

	_, err := f.orch.Run(context.Background(), []submission.Submission{folderSub("Ada Lovelace", "12345678")})
	if err == nil {
		t.Fatal("expected setup failure")
	}
	if f.op.startCalls != 0 {
		t.Fatal("batch must not start on setup failure")
	}
	if len(f.stager.acquired) != 0 || len(f.sink.rows) != 0 {
		t.Fatal("setup failure must leave no side effects")
	}
}

func TestMissingHarnessAborts(t *testing.T) {
	f := newFixture(t)
	stager := &fakeStager{errs: map[string]error{}}
	orch := orchestrator.New(stager, f.tool, f.sink, f.mover, f.op, "/nonexistent/HomeworkTest.java")

	_, err := orch.Run(context.Background(), []submission.Submission{folderSub("Ada Lovelace", "12345678")})
	if err == nil {
		t.Fatal("expected missing harness to abort")
	}
	if appErr.GetCode(err) != appErr.HarnessAbsent {
		t.Fatalf("unexpected code: %d", appErr.GetCode(err))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write zip file: %v", err)
	}
}

// TestPipelineEndToEnd drives the real scanner, staging area, ledger and
// mover over a mixed batch: a folder submission, a zip with platform junk
// inside, and a folder holding only a .docx. Only the Java toolchain and
// the operator are faked.
func TestPipelineEndToEnd(t *testing.T) {
	root := t.TempDir()
	hwDir := filepath.Join(root, "Homeworks")

	aRoot := filepath.Join(hwDir, "Ada Lovelace_1_assignsubmission_file")
	writeFile(t, filepath.Join(aRoot, "hw1_11112222", "Main.java"),
		"package hw1;\n\npublic class Main {\n    int add(int a, int b) { return a + b; }\n}\n")

	bRoot := filepath.Join(hwDir, "Grace Hopper_2_assignsubmission_file")
	if err := os.MkdirAll(bRoot, 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	writeZip(t, filepath.Join(bRoot, "solution_22223333.zip"), map[string]string{
		"Main.java":            "public class Main {}\n",
		"__MACOSX/._Main.java": "junk",
	})

	cRoot := filepath.Join(hwDir, "Charlie Chaplin_3_assignsubmission_file")
	writeFile(t, filepath.Join(cRoot, "notes.docx"), "essay instead of code")

	harness := filepath.Join(root, "tests", "HomeworkTest.java")
	writeFile(t, harness, harnessSource)
	ledgerPath := filepath.Join(root, "output", "grades.csv")

	scanner := submission.NewScanner(hwDir, "done", []string{"extracted"})
	subs, err := scanner.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(subs))
	}

	book, err := ledger.Open(ledgerPath)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	stager := staging.NewManager(filepath.Join(root, "temp_dir"), harness, []string{"extracted"})
	mover := archive.NewMover(filepath.Join(hwDir, "done"))
	tool := &fakeToolchain{runRaw: passingRun}
	op := &fakeOperator{}

	orch := orchestrator.New(stager, tool, book, mover, op, harness)
	summary, err := orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := book.Close(); err != nil {
		t.Fatalf("close ledger: %v", err)
	}

	if summary.Graded != 2 || summary.Skipped != 1 || summary.Flagged != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if op.startCount != 2 {
		t.Fatalf("docx submission must not enter the batch, got count %d", op.startCount)
	}

	// graded folders moved to done, the unknown one left in place
	for _, folder := range []string{filepath.Base(aRoot), filepath.Base(bRoot)} {
		if _, err := os.Stat(filepath.Join(hwDir, "done", folder)); err != nil {
			t.Fatalf("expected %s in done: %v", folder, err)
		}
		if _, err := os.Stat(filepath.Join(hwDir, folder)); !os.IsNotExist(err) {
			t.Fatalf("expected %s gone from pending, stat err %v", folder, err)
		}
	}
	if _, err := os.Stat(cRoot); err != nil {
		t.Fatalf("unknown submission must stay in place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(hwDir, "done", filepath.Base(aRoot), "hw1_11112222", "Main.java")); err != nil {
		t.Fatalf("archived folder must keep its content: %v", err)
	}

	// both compiles saw the student source and no platform junk
	if len(tool.sources) != 2 {
		t.Fatalf("expected 2 compiles, got %d", len(tool.sources))
	}
	for _, names := range tool.sources {
		if len(names) != 1 || names[0] != "Main.java" {
			t.Fatalf("unexpected staged sources: %v", names)
		}
	}

	reopened, err := ledger.Open(ledgerPath)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if reopened.Len() != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", reopened.Len())
	}
	for _, matric := range []string{"11112222", "22223333"} {
		if _, ok := reopened.Lookup(matric); !ok {
			t.Fatalf("missing ledger row for %s", matric)
		}
	}

	// a second run finds only the unrecognized folder and appends nothing
	subs2, err := scanner.Scan()
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if len(subs2) != 1 || subs2[0].Kind != submission.KindUnknown {
		t.Fatalf("expected only the docx folder to remain, got %+v", subs2)
	}
	orch2 := orchestrator.New(stager, tool, reopened, mover, &fakeOperator{}, harness)
	summary2, err := orch2.Run(context.Background(), subs2)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary2.Graded != 0 || summary2.Skipped != 1 {
		t.Fatalf("unexpected second summary: %+v", summary2)
	}
	if err := reopened.Close(); err != nil {
		t.Fatalf("close ledger: %v", err)
	}

	final, err := ledger.Open(ledgerPath)
	if err != nil {
		t.Fatalf("final open: %v", err)
	}
	defer final.Close()
	if final.Len() != 2 {
		t.Fatalf("repeated runs must not duplicate rows, got %d", final.Len())
	}
}

func TestDeclaredTestsDiscoveredFromHarness(t *testing.T) {
	f := newFixture(t)
	f.tool.runRaw = "├─ task1() ✔\n├─ task2() ✘ expected: <4> but was: <5>\n"
	subs := []submission.Submission{folderSub("Ada Lovelace", "12345678")}

	_, err := f.orch.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(f.op.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(f.op.reports))
	}
	rep := f.op.reports[0]
	if rep.Total() != 3 {
		t.Fatalf("expected 3 declared cases from the harness, got %d", rep.Total())
	}
	// task3 was never reported by the launcher and must count as failed.
	if rep.Outcomes[2].Passed || rep.Outcomes[2].Message != "not reported by test run" {
		t.Fatalf("unexpected outcome for unreported case: %+v", rep.Outcomes[2])
	}
	if f.sink.rows[0].TestSummary != "1/3 passed; failed: task2, task3" {
		t.Fatalf("unexpected summary: %q", f.sink.rows[0].TestSummary)
	}
}
