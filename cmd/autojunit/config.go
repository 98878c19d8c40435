package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"autojunit/internal/toolchain"
	"autojunit/pkg/utils/logger"
)

const (
	defaultConfigPath     = "configs/autojunit.yaml"
	defaultHomeworkDir    = "Homeworks"
	defaultDoneDirName    = "done"
	defaultStagingDir     = "temp_dir"
	defaultLedgerPath     = "output/grades.csv"
	defaultHarnessPath    = "tests/TestInTheSky.java"
	defaultLauncherJar    = "lib/junit-platform-console-standalone-1.14.1.jar"
	defaultCompileTimeout = time.Minute
	defaultTestTimeout    = 2 * time.Minute
	defaultMaxScore       = 2
)

// PathsConfig holds the grading directory layout. Relative paths resolve
// against the working directory the tool is started from.
type PathsConfig struct {
	HomeworkDir string `yaml:"homeworkDir"`
	DoneDirName string `yaml:"doneDirName"`
	StagingDir  string `yaml:"stagingDir"`
	LedgerPath  string `yaml:"ledgerPath"`
	HarnessPath string `yaml:"harnessPath"`
}

// ToolchainConfig holds JDK and JUnit launcher settings.
type ToolchainConfig struct {
	JavacPath         string        `yaml:"javacPath"`
	JavaPath          string        `yaml:"javaPath"`
	LauncherJar       string        `yaml:"launcherJar"`
	SourceRelease     string        `yaml:"sourceRelease"`
	EnablePreview     bool          `yaml:"enablePreview"`
	ExtraCompileFlags string        `yaml:"extraCompileFlags"`
	ExtraTestFlags    string        `yaml:"extraTestFlags"`
	CompileTimeout    *timeDuration `yaml:"compileTimeout"`
	TestTimeout       *timeDuration `yaml:"testTimeout"`
}

// GradingConfig holds scoring settings.
type GradingConfig struct {
	MaxScore int `yaml:"maxScore"`
	// DeclaredTests overrides @Test discovery from the harness source.
	DeclaredTests []string `yaml:"declaredTests"`
}

// ScanConfig holds submission scan settings.
type ScanConfig struct {
	IgnoreDirs []string `yaml:"ignoreDirs"`
}

// AppConfig holds autojunit config.
type AppConfig struct {
	Logger    logger.Config   `yaml:"logger"`
	Paths     PathsConfig     `yaml:"paths"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Grading   GradingConfig   `yaml:"grading"`
	Scan      ScanConfig      `yaml:"scan"`
}

// timeDuration wraps time.Duration for YAML unmarshalling.
type timeDuration struct {
	value time.Duration
}

// UnmarshalYAML supports duration strings like "60s" or "2m".
func (d *timeDuration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration failed: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration failed: %w", err)
	}
	d.value = parsed
	return nil
}

// Duration returns the underlying time.Duration.
func (d *timeDuration) Duration() time.Duration {
	if d == nil {
		return 0
	}
	return d.value
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Paths.HomeworkDir == "" {
		cfg.Paths.HomeworkDir = defaultHomeworkDir
	}
	if cfg.Paths.DoneDirName == "" {
		cfg.Paths.DoneDirName = defaultDoneDirName
	}
	if cfg.Paths.StagingDir == "" {
		cfg.Paths.StagingDir = defaultStagingDir
	}
	if cfg.Paths.LedgerPath == "" {
		cfg.Paths.LedgerPath = defaultLedgerPath
	}
	if cfg.Paths.HarnessPath == "" {
		cfg.Paths.HarnessPath = defaultHarnessPath
	}
	if cfg.Toolchain.LauncherJar == "" {
		cfg.Toolchain.LauncherJar = defaultLauncherJar
	}
	if cfg.Toolchain.CompileTimeout.Duration() == 0 {
		cfg.Toolchain.CompileTimeout = &timeDuration{value: defaultCompileTimeout}
	}
	if cfg.Toolchain.TestTimeout.Duration() == 0 {
		cfg.Toolchain.TestTimeout = &timeDuration{value: defaultTestTimeout}
	}
	if cfg.Grading.MaxScore <= 0 {
		cfg.Grading.MaxScore = defaultMaxScore
	}
	if len(cfg.Scan.IgnoreDirs) == 0 {
		cfg.Scan.IgnoreDirs = []string{"extracted"}
	}
	return &cfg, nil
}

func (tc ToolchainConfig) toOptions() toolchain.Options {
	return toolchain.Options{
		JavacPath:         tc.JavacPath,
		JavaPath:          tc.JavaPath,
		LauncherJar:       tc.LauncherJar,
		SourceRelease:     tc.SourceRelease,
		EnablePreview:     tc.EnablePreview,
		ExtraCompileFlags: tc.ExtraCompileFlags,
		ExtraTestFlags:    tc.ExtraTestFlags,
		CompileTimeout:    tc.CompileTimeout.Duration(),
		TestTimeout:       tc.TestTimeout.Duration(),
	}
}

const starterConfig = `# autojunit configuration.

logger:
  level: info        # debug, info, warn, error
  format: console    # console or json
  outputPath: stdout

paths:
  homeworkDir: Homeworks                # one subfolder per student submission
  doneDirName: done                     # graded submissions move to Homeworks/done
  stagingDir: temp_dir                  # wiped and rebuilt for every submission
  ledgerPath: output/grades.csv         # semicolon-separated grade ledger
  harnessPath: tests/TestInTheSky.java  # instructor JUnit test source

toolchain:
  javacPath: javac                      # bare name resolves through PATH
  javaPath: java
  launcherJar: lib/junit-platform-console-standalone-1.14.1.jar
  compileTimeout: 60s
  testTimeout: 2m
  # sourceRelease: "21"
  # enablePreview: true
  # extraCompileFlags: "-Xlint:none"
  # extraTestFlags: ""

grading:
  maxScore: 2                           # per-task score upper bound
  # declaredTests: [task1, task2, task3]  # default: discovered from the harness

scan:
  ignoreDirs: [extracted]
`

// firstRunSetup writes a starter config and the directory skeleton it
// refers to, then tells the operator what goes where.
func firstRunSetup(configPath string) error {
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir failed: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("write starter config failed: %w", err)
	}

	skeleton := []string{
		defaultHomeworkDir,
		filepath.Join(defaultHomeworkDir, defaultDoneDirName),
		filepath.Dir(defaultLedgerPath),
		filepath.Dir(defaultHarnessPath),
		filepath.Dir(defaultLauncherJar),
	}
	for _, dir := range skeleton {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s failed: %w", dir, err)
		}
	}

	fmt.Printf("Wrote a starter config to %s and created the directory skeleton.\n", configPath)
	fmt.Printf("Before the first run:\n")
	fmt.Printf("  1. Put the student submissions into %s/ (one folder per student).\n", defaultHomeworkDir)
	fmt.Printf("  2. Put the JUnit test source at %s.\n", defaultHarnessPath)
	fmt.Printf("  3. Put the console launcher jar at %s.\n", defaultLauncherJar)
	fmt.Printf("Then start autojunit again.\n")
	return nil
}
