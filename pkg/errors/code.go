package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Setup & Environment errors
// 12000-12999: Submission intake errors
// 13000-13999: Toolchain errors (compile & test run)
// 14000-14999: Grade ledger errors
// 15000-15999: Archive mover errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalError ErrorCode = 10001
	InvalidParams ErrorCode = 10002
	NotFound      ErrorCode = 10003
	Timeout       ErrorCode = 10004

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10302

	// ========== Setup & Environment Errors (11000-11999) ==========

	// Toolchain presence (11000-11099)
	SetupFailed       ErrorCode = 11000
	CompilerNotFound  ErrorCode = 11001
	RuntimeNotFound   ErrorCode = 11002
	LauncherJarAbsent ErrorCode = 11003
	HarnessAbsent     ErrorCode = 11004

	// Directory layout (11100-11199)
	WorkDirUnavailable ErrorCode = 11100
	OutputDirFailed    ErrorCode = 11101

	// ========== Submission Intake Errors (12000-12999) ==========

	// Scanning (12000-12099)
	ScanFailed             ErrorCode = 12000
	UnknownSubmissionKind  ErrorCode = 12001
	SubmissionAlreadyMoved ErrorCode = 12002

	// Extraction (12100-12199)
	ExtractionFailed   ErrorCode = 12100
	UnsupportedArchive ErrorCode = 12101
	ArchiveEntryUnsafe ErrorCode = 12102
	ArchiveCorrupt     ErrorCode = 12103

	// Staging (12200-12299)
	StagingFailed  ErrorCode = 12200
	NoSourcesFound ErrorCode = 12201

	// Identity (12300-12399)
	IdentityMissing ErrorCode = 12300

	// ========== Toolchain Errors (13000-13999) ==========

	// Compile (13000-13099)
	CompileFailed  ErrorCode = 13000
	CompileTimeout ErrorCode = 13001

	// Test run (13100-13199)
	TestRunFailed  ErrorCode = 13100
	TestRunTimeout ErrorCode = 13101
	TestRunCrashed ErrorCode = 13102

	// Result parsing (13200-13299)
	ReportIncomplete ErrorCode = 13200

	// ========== Grade Ledger Errors (14000-14999) ==========

	LedgerOpenFailed   ErrorCode = 14000
	LedgerAppendFailed ErrorCode = 14001
	LedgerFlushFailed  ErrorCode = 14002
	LedgerParseFailed  ErrorCode = 14003

	// ========== Archive Mover Errors (15000-15999) ==========

	MoveFailed        ErrorCode = 15000
	MoveSourceMissing ErrorCode = 15001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:       "Success",
	InternalError: "Internal error",
	InvalidParams: "Invalid parameters",
	NotFound:      "Resource not found",
	Timeout:       "Operation timeout",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// Setup & Environment
	SetupFailed:       "Environment setup failed",
	CompilerNotFound:  "Java compiler not found",
	RuntimeNotFound:   "Java runtime not found",
	LauncherJarAbsent: "JUnit console launcher jar not found",
	HarnessAbsent:     "Test harness source not found",

	WorkDirUnavailable: "Working directory is unavailable",
	OutputDirFailed:    "Failed to prepare output directory",

	// Submission intake
	ScanFailed:             "Failed to scan submissions",
	UnknownSubmissionKind:  "Submission layout not recognized",
	SubmissionAlreadyMoved: "Submission was already moved",

	ExtractionFailed:   "Failed to extract submission archive",
	UnsupportedArchive: "Archive format is not supported",
	ArchiveEntryUnsafe: "Archive entry path is unsafe",
	ArchiveCorrupt:     "Archive is corrupt",

	StagingFailed:  "Failed to stage submission sources",
	NoSourcesFound: "No Java sources found in submission",

	IdentityMissing: "Matriculation number not found",

	// Toolchain
	CompileFailed:  "Compilation failed",
	CompileTimeout: "Compilation timeout",

	TestRunFailed:  "Test run failed",
	TestRunTimeout: "Test run timeout",
	TestRunCrashed: "Test run crashed",

	ReportIncomplete: "Test report is incomplete",

	// Grade ledger
	LedgerOpenFailed:   "Failed to open grade ledger",
	LedgerAppendFailed: "Failed to append grade record",
	LedgerFlushFailed:  "Failed to flush grade ledger",
	LedgerParseFailed:  "Failed to parse grade ledger",

	// Archive mover
	MoveFailed:        "Failed to move submission to done",
	MoveSourceMissing: "Submission folder is missing",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Fatal reports whether the error code aborts the whole grading run.
// Setup errors make every submission unprocessable; ledger errors
// mean grades can no longer be recorded durably.
func (c ErrorCode) Fatal() bool {
	switch {
	case c >= 11000 && c < 12000:
		return true
	case c >= 14000 && c < 15000:
		return true
	default:
		return false
	}
}
