// Package staging prepares isolated compile workspaces, one submission at a time.
package staging

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autojunit/internal/extract"
	"autojunit/internal/submission"
	appErr "autojunit/pkg/errors"
	"autojunit/pkg/utils/logger"
)

const (
	binDirName = "bin"

	// fallbackClassName is used for text submissions whose content does
	// not declare a recognizable type.
	fallbackClassName = "Submission"
)

// classNamePattern finds the first top-level type declaration in a Java
// source body. The staged file must carry that name or javac rejects it.
var classNamePattern = regexp.MustCompile(`(?m)^\s*(?:public\s+)?(?:final\s+|abstract\s+)*(?:class|interface|enum|record)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// Workspace is a fully staged compile and test area for one submission.
type Workspace struct {
	CycleID     string   // unique id for this processing cycle
	Dir         string   // workspace root holding the flat staged sources
	BinDir      string   // compiler output directory
	SourceFiles []string // staged student sources, absolute paths
	HarnessPath string   // staged harness source, absolute path
}

// Manager owns the staging root and builds one workspace at a time.
type Manager struct {
	root        string
	harnessPath string
	ignoreDirs  map[string]struct{}
}

// NewManager creates a staging manager rooted at root. harnessPath is the
// canonical test harness source staged into every workspace. ignoreDirs
// are directory names skipped while collecting sources.
func NewManager(root, harnessPath string, ignoreDirs []string) *Manager {
	ignored := make(map[string]struct{}, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignored[strings.ToLower(name)] = struct{}{}
	}
	return &Manager{root: root, harnessPath: harnessPath, ignoreDirs: ignored}
}

// Acquire purges the staging root and builds a fresh workspace for sub.
// Purging first reclaims leftovers from an interrupted earlier run, so one
// student's files can never leak into the next student's compile.
func (m *Manager) Acquire(ctx context.Context, sub submission.Submission) (*Workspace, error) {
	if m.root == "" {
		return nil, appErr.ValidationError("staging_root", "required")
	}
	if err := os.RemoveAll(m.root); err != nil {
		return nil, appErr.Wrapf(err, appErr.StagingFailed, "purge staging root failed")
	}

	ws := &Workspace{CycleID: uuid.NewString()}
	ws.Dir = filepath.Join(m.root, ws.CycleID)
	ws.BinDir = filepath.Join(ws.Dir, binDirName)
	if err := os.MkdirAll(ws.BinDir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.StagingFailed, "create workspace failed")
	}

	var err error
	switch sub.Kind {
	case submission.KindFolder:
		err = m.collectJava(sub.RootPath, ws)
	case submission.KindArchive:
		err = m.stageArchive(sub.RootPath, ws)
	case submission.KindText:
		err = m.stageText(sub.RootPath, ws)
	default:
		err = appErr.Newf(appErr.UnknownSubmissionKind, "cannot stage submission kind %q", sub.Kind)
	}
	if err != nil {
		m.Release(ws)
		return nil, err
	}

	if len(ws.SourceFiles) == 0 {
		m.Release(ws)
		return nil, appErr.New(appErr.NoSourcesFound).WithDetail("submission", sub.FolderName)
	}

	normalized, err := normalizeSources(ws.SourceFiles)
	if err != nil {
		m.Release(ws)
		return nil, err
	}

	if err := m.stageHarness(ws); err != nil {
		m.Release(ws)
		return nil, err
	}

	logger.Info(ctx, "workspace staged",
		zap.String("dir", ws.Dir),
		zap.Int("sources", len(ws.SourceFiles)),
		zap.Int("normalized", normalized))
	return ws, nil
}

// Release removes the workspace. Safe to call more than once.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil || ws.Dir == "" {
		return
	}
	_ = os.RemoveAll(ws.Dir)
}

// collectJava walks dir recursively and copies every .java file flat into
// the workspace. Duplicate base names overwrite each other; the flat
// default-package layout keeps only the last copy.
func (m *Manager) collectJava(dir string, ws *Workspace) error {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != dir && m.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".java") {
			return nil
		}
		target := filepath.Join(ws.Dir, filepath.Base(path))
		if err := copyFile(path, target); err != nil {
			return err
		}
		if _, dup := seen[target]; !dup {
			seen[target] = struct{}{}
			ws.SourceFiles = append(ws.SourceFiles, target)
		}
		return nil
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.StagingFailed, "collect sources failed")
	}
	return nil
}

// stageArchive inflates the submission's archive into a scratch directory
// and collects the sources found inside it.
func (m *Manager) stageArchive(rootPath string, ws *Workspace) error {
	archiveName, err := findArchive(rootPath)
	if err != nil {
		return err
	}
	scratch := filepath.Join(m.root, ws.CycleID+"-extract")
	defer func() {
		_ = os.RemoveAll(scratch)
	}()
	if err := extract.Inflate(filepath.Join(rootPath, archiveName), scratch); err != nil {
		return err
	}
	return m.collectJava(scratch, ws)
}

// stageText synthesizes a compilable source file from a single-file text
// submission. The class name is sniffed from the content so the file name
// matches the declared type.
func (m *Manager) stageText(rootPath string, ws *Workspace) error {
	textName, err := findText(rootPath)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(rootPath, textName))
	if err != nil {
		return appErr.Wrapf(err, appErr.StagingFailed, "read text submission failed")
	}

	className := fallbackClassName
	if match := classNamePattern.FindSubmatch(content); match != nil {
		className = string(match[1])
	}
	target := filepath.Join(ws.Dir, className+".java")
	if err := os.WriteFile(target, content, 0644); err != nil {
		return appErr.Wrapf(err, appErr.StagingFailed, "write synthesized source failed")
	}
	ws.SourceFiles = append(ws.SourceFiles, target)
	return nil
}

// stageHarness copies the canonical harness source into the workspace,
// after source normalization so the harness keeps its own imports. It is
// staged last: a student file carrying the harness name is replaced and
// must not be compiled twice.
func (m *Manager) stageHarness(ws *Workspace) error {
	if m.harnessPath == "" {
		return appErr.ValidationError("harness_path", "required")
	}
	target := filepath.Join(ws.Dir, filepath.Base(m.harnessPath))
	if err := copyFile(m.harnessPath, target); err != nil {
		return appErr.Wrapf(err, appErr.HarnessAbsent, "stage test harness failed")
	}
	ws.HarnessPath = target

	kept := ws.SourceFiles[:0]
	for _, f := range ws.SourceFiles {
		if f != target {
			kept = append(kept, f)
		}
	}
	ws.SourceFiles = kept
	return nil
}

func (m *Manager) skipDir(name string) bool {
	if submission.IsMetadata(name) {
		return true
	}
	_, ignored := m.ignoreDirs[strings.ToLower(name)]
	return ignored
}

// findArchive returns the first archive entry in dir, in directory order.
func findArchive(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ExtractionFailed, "list submission folder failed")
	}
	for _, entry := range entries {
		if !entry.IsDir() && submission.IsArchiveName(entry.Name()) {
			return entry.Name(), nil
		}
	}
	return "", appErr.Newf(appErr.ExtractionFailed, "no archive entry found in %s", dir)
}

// findText returns the first .txt entry in dir, in directory order.
func findText(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StagingFailed, "list submission folder failed")
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".txt") {
			return entry.Name(), nil
		}
	}
	return "", appErr.Newf(appErr.StagingFailed, "no text entry found in %s", dir)
}

// normalizeSources strips package and import declarations from the staged
// student sources. The workspace is a flat default-package layout, so the
// original declarations would not compile against it. Returns the number
// of files that were rewritten.
func normalizeSources(paths []string) (int, error) {
	modified := 0
	for _, path := range paths {
		changed, err := normalizeSource(path)
		if err != nil {
			return modified, appErr.Wrapf(err, appErr.StagingFailed, "normalize source failed")
		}
		if changed {
			modified++
		}
	}
	return modified, nil
}

func normalizeSource(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	lines := strings.Split(string(content), "\n")
	kept := make([]string, 0, len(lines))
	changed := false
	for _, line := range lines {
		if isDeclarationLine(strings.TrimSpace(line)) {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	if !changed {
		return false, nil
	}
	return true, os.WriteFile(path, []byte(strings.Join(kept, "\n")), 0644)
}

func isDeclarationLine(trimmed string) bool {
	if !strings.HasSuffix(trimmed, ";") {
		return false
	}
	return strings.HasPrefix(trimmed, "package ") || strings.HasPrefix(trimmed, "import ")
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, content, 0644)
}
