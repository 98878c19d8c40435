// Package submission defines submission identity, classification and scanning.
package submission

// Kind classifies how a submission is packaged.
type Kind string

const (
	KindArchive Kind = "Archive"
	KindText    Kind = "Text"
	KindFolder  Kind = "Folder"
	KindUnknown Kind = "Unknown"
)

// Status represents the lifecycle state of a submission.
type Status string

const (
	StatusPending         Status = "Pending"
	StatusStaged          Status = "Staged"
	StatusCompiled        Status = "Compiled"
	StatusCompileFailed   Status = "CompileFailed"
	StatusTested          Status = "Tested"
	StatusGraded          Status = "Graded"
	StatusArchived        Status = "Archived"
	StatusExtractionError Status = "ExtractionError"
)

// Submission describes one student folder under the homework root.
type Submission struct {
	FolderName    string
	RootPath      string
	StudentName   string
	Matriculation string // empty when no 8-digit group was found
	Kind          Kind
	Status        Status
	Note          string // diagnostic carried by flagged submissions
}

// Entry is a minimal view of a directory entry for classification.
type Entry struct {
	Name  string
	IsDir bool
}
