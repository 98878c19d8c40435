package toolchain

import (
	"context"

	"go.uber.org/zap"

	"autojunit/internal/report"
	"autojunit/internal/staging"
	"autojunit/pkg/utils/logger"
)

// RunTests executes the console launcher against the compiled classes and
// returns the raw report output with an exit classification. Launcher
// exit code 1 only signals failed test cases and still counts as a
// normal run.
func (r *Runner) RunTests(ctx context.Context, ws *staging.Workspace) (string, report.Exit, error) {
	runRes, err := runCommand(ctx, Invocation{
		Cmd:     r.testArgs(ws),
		Dir:     ws.Dir,
		Timeout: r.testTimeout,
	})
	if err != nil {
		return "", report.ExitCrash, err
	}

	raw := runRes.Stdout
	if runRes.Stderr != "" {
		raw += "\n" + runRes.Stderr
	}

	switch {
	case runRes.TimedOut:
		logger.Warn(ctx, "test run timed out", zap.Duration("limit", r.testTimeout))
		return raw, report.ExitTimeout, nil
	case runRes.ExitCode == 0 || runRes.ExitCode == 1:
		return raw, report.ExitNormal, nil
	default:
		logger.Warn(ctx, "test run crashed", zap.Int("exit_code", runRes.ExitCode))
		return raw, report.ExitCrash, nil
	}
}

// testArgs builds the launcher argv. Preview bytecode needs the matching
// JVM flag at test time as well.
func (r *Runner) testArgs(ws *staging.Workspace) []string {
	args := []string{r.javaPath}
	if r.enablePreview {
		args = append(args, "--enable-preview")
	}
	args = append(args,
		"-jar", r.launcherJar,
		"execute",
		"--class-path", ws.BinDir,
		"--scan-class-path",
		"--details=tree",
		"--disable-ansi-colors",
	)
	args = append(args, r.extraTestFlags...)
	return args
}
