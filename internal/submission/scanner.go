package submission

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	appErr "autojunit/pkg/errors"
)

// Moodle folder exports name submissions "First Last_12345_assignsubmission_file".
// The matriculation number appears in the names of the files the student
// uploaded, preferably prefixed with an underscore.
var (
	matricWithUnderscore = regexp.MustCompile(`_(\d{8})`)
	matricBare           = regexp.MustCompile(`\d{8}`)
)

// Scanner lists pending submissions under the homework root.
type Scanner struct {
	homeworkDir string
	doneDirName string
	ignoreDirs  map[string]bool
}

// NewScanner creates a scanner rooted at homeworkDir. Entries named like the
// done directory or any of ignoreDirs are never reported as submissions.
func NewScanner(homeworkDir, doneDirName string, ignoreDirs []string) *Scanner {
	skip := make(map[string]bool, len(ignoreDirs))
	for _, name := range ignoreDirs {
		skip[strings.ToLower(name)] = true
	}
	return &Scanner{
		homeworkDir: homeworkDir,
		doneDirName: strings.ToLower(doneDirName),
		ignoreDirs:  skip,
	}
}

// Scan returns all pending submissions in lexical folder order.
func (s *Scanner) Scan() ([]Submission, error) {
	if s.homeworkDir == "" {
		return nil, appErr.ValidationError("homework_dir", "required")
	}
	entries, err := os.ReadDir(s.homeworkDir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ScanFailed, "read homework dir failed")
	}

	subs := make([]Submission, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if s.skip(entry.Name()) {
			continue
		}
		sub, err := s.Describe(entry.Name())
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Describe builds the submission record for one folder under the homework root.
func (s *Scanner) Describe(folderName string) (Submission, error) {
	rootPath := filepath.Join(s.homeworkDir, folderName)
	entries, err := os.ReadDir(rootPath)
	if err != nil {
		return Submission{}, appErr.Wrapf(err, appErr.ScanFailed, "read submission folder failed")
	}

	visible := make([]Entry, 0, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
		if IsMetadata(entry.Name()) || s.ignoreDirs[strings.ToLower(entry.Name())] {
			continue
		}
		visible = append(visible, Entry{Name: entry.Name(), IsDir: entry.IsDir()})
	}

	return Submission{
		FolderName:    folderName,
		RootPath:      rootPath,
		StudentName:   StudentName(folderName),
		Matriculation: findMatriculation(names),
		Kind:          Classify(visible),
		Status:        StatusPending,
	}, nil
}

func (s *Scanner) skip(name string) bool {
	lower := strings.ToLower(name)
	if lower == s.doneDirName {
		return true
	}
	if IsMetadata(name) {
		return true
	}
	return s.ignoreDirs[lower]
}

// StudentName extracts the display name from a Moodle export folder name:
// everything before the first underscore.
func StudentName(folderName string) string {
	if idx := strings.Index(folderName, "_"); idx >= 0 {
		return folderName[:idx]
	}
	return folderName
}

// findMatriculation searches the entry names for an 8-digit group.
// The underscore-prefixed form wins over a bare digit run anywhere in
// the listing, so "report_12345678.pdf" beats "hw20240101.zip".
func findMatriculation(names []string) string {
	for _, name := range names {
		if m := matricWithUnderscore.FindStringSubmatch(name); m != nil {
			return m[1]
		}
	}
	for _, name := range names {
		if m := matricBare.FindString(name); m != "" {
			return m
		}
	}
	return ""
}
