package toolchain

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"autojunit/internal/report"
	"autojunit/internal/staging"
	appErr "autojunit/pkg/errors"
	"autojunit/pkg/utils/logger"
)

// Compile runs javac over the staged sources with the launcher jar on the
// classpath. A failing compile is a per-submission outcome, not an error.
func (r *Runner) Compile(ctx context.Context, ws *staging.Workspace) (report.CompileResult, error) {
	if ws == nil || len(ws.SourceFiles) == 0 {
		return report.CompileResult{}, appErr.New(appErr.NoSourcesFound).WithMessage("workspace has no sources to compile")
	}

	runRes, err := runCommand(ctx, Invocation{
		Cmd:     r.compileArgs(ws),
		Dir:     ws.Dir,
		Timeout: r.compileTimeout,
	})
	if err != nil {
		return report.CompileResult{}, err
	}

	res := report.CompileResult{
		OK:       runRes.ExitCode == 0 && !runRes.TimedOut,
		ExitCode: runRes.ExitCode,
		Duration: runRes.Duration,
	}
	if !res.OK {
		res.Output = compileDiagnostics(runRes, r.compileTimeout)
		logger.Warn(ctx, "compile failed",
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("timed_out", runRes.TimedOut))
		return res, nil
	}

	artifacts, err := collectClassFiles(ws.BinDir)
	if err != nil {
		return res, appErr.Wrapf(err, appErr.CompileFailed, "list compiled classes failed")
	}
	res.Artifacts = artifacts
	logger.Info(ctx, "compile succeeded",
		zap.Int("classes", len(artifacts)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// compileArgs builds the javac argv. The harness source goes last so its
// diagnostics appear after the student's own.
func (r *Runner) compileArgs(ws *staging.Workspace) []string {
	args := []string{r.javacPath, "-cp", classpath(ws.Dir, r.launcherJar), "-d", ws.BinDir}
	if r.enablePreview {
		args = append(args, "--enable-preview")
	}
	if r.sourceRelease != "" {
		args = append(args, "--source", r.sourceRelease)
	}
	args = append(args, r.extraCompileFlags...)
	args = append(args, ws.SourceFiles...)
	if ws.HarnessPath != "" {
		args = append(args, ws.HarnessPath)
	}
	return args
}

func compileDiagnostics(runRes RunResult, limit time.Duration) string {
	if runRes.TimedOut {
		return fmt.Sprintf("compile timed out after %s", limit)
	}
	out := strings.TrimSpace(runRes.Stderr)
	if out == "" {
		out = strings.TrimSpace(runRes.Stdout)
	}
	if out == "" {
		out = fmt.Sprintf("javac exited with code %d", runRes.ExitCode)
	}
	return out
}

func collectClassFiles(binDir string) ([]string, error) {
	var classes []string
	err := filepath.WalkDir(binDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".class") {
			classes = append(classes, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return classes, nil
}
