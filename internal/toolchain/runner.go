package toolchain

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	appErr "autojunit/pkg/errors"
	"autojunit/pkg/utils/logger"
)

const (
	defaultJavacBinary = "javac"
	defaultJavaBinary  = "java"
)

// Options configures the toolchain runner. The extra flag strings use
// shell quoting rules.
type Options struct {
	JavacPath         string
	JavaPath          string
	LauncherJar       string
	SourceRelease     string
	EnablePreview     bool
	ExtraCompileFlags string
	ExtraTestFlags    string
	CompileTimeout    time.Duration
	TestTimeout       time.Duration
}

// Runner invokes javac and the JUnit console launcher for one workspace
// at a time.
type Runner struct {
	javacPath         string
	javaPath          string
	launcherJar       string
	sourceRelease     string
	enablePreview     bool
	extraCompileFlags []string
	extraTestFlags    []string
	compileTimeout    time.Duration
	testTimeout       time.Duration
}

// NewRunner creates a runner from opts.
func NewRunner(opts Options) (*Runner, error) {
	if opts.LauncherJar == "" {
		return nil, appErr.ValidationError("launcher_jar", "required")
	}
	// javac rejects --enable-preview without a source release
	if opts.EnablePreview && opts.SourceRelease == "" {
		return nil, appErr.ValidationError("source_release", "required when preview features are enabled")
	}

	compileFlags, err := splitFlags(opts.ExtraCompileFlags)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse extra compile flags failed")
	}
	testFlags, err := splitFlags(opts.ExtraTestFlags)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse extra test flags failed")
	}

	javacPath := opts.JavacPath
	if javacPath == "" {
		javacPath = defaultJavacBinary
	}
	javaPath := opts.JavaPath
	if javaPath == "" {
		javaPath = defaultJavaBinary
	}

	return &Runner{
		javacPath:         javacPath,
		javaPath:          javaPath,
		launcherJar:       opts.LauncherJar,
		sourceRelease:     opts.SourceRelease,
		enablePreview:     opts.EnablePreview,
		extraCompileFlags: compileFlags,
		extraTestFlags:    testFlags,
		compileTimeout:    opts.CompileTimeout,
		testTimeout:       opts.TestTimeout,
	}, nil
}

func splitFlags(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return shlex.Split(raw)
}

// VerifySetup confirms the external toolchain is usable before any
// submission is processed.
func (r *Runner) VerifySetup(ctx context.Context) error {
	if err := lookBinary(r.javacPath); err != nil {
		return appErr.Wrapf(err, appErr.CompilerNotFound, "javac not usable at %q", r.javacPath)
	}
	if err := lookBinary(r.javaPath); err != nil {
		return appErr.Wrapf(err, appErr.RuntimeNotFound, "java not usable at %q", r.javaPath)
	}
	if _, err := os.Stat(r.launcherJar); err != nil {
		return appErr.Wrapf(err, appErr.LauncherJarAbsent, "console launcher jar missing at %q", r.launcherJar)
	}
	logger.Info(ctx, "toolchain verified",
		zap.String("javac", r.javacPath),
		zap.String("java", r.javaPath),
		zap.String("launcher", r.launcherJar))
	return nil
}

// lookBinary resolves bare names through PATH and stats explicit paths.
func lookBinary(path string) error {
	if strings.ContainsAny(path, `/\`) {
		_, err := os.Stat(path)
		return err
	}
	_, err := exec.LookPath(path)
	return err
}

// classpath joins entries with the platform's path list separator.
func classpath(entries ...string) string {
	return strings.Join(entries, string(os.PathListSeparator))
}
