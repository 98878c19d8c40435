package submission

import "strings"

// archiveSuffixes lists recognized archive packagings. Recognition is wider
// than extraction support: .rar and .7z classify as archives and are rejected
// at extraction time.
var archiveSuffixes = []string{".zip", ".rar", ".7z", ".tar.gz", ".tgz", ".tar.zst"}

// metadataNames are platform artifacts that never belong to a submission.
var metadataNames = map[string]bool{
	"__macosx":  true,
	"_macosx":   true,
	".ds_store": true,
}

// IsMetadata reports whether the entry name is a platform artifact.
func IsMetadata(name string) bool {
	return metadataNames[strings.ToLower(name)]
}

// IsArchiveName reports whether the file name carries a recognized archive suffix.
func IsArchiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// ClassifyEntry maps a single directory entry to a kind. Total: every
// entry gets one of the four kinds.
func ClassifyEntry(name string, isDir bool) Kind {
	if !isDir && IsArchiveName(name) {
		return KindArchive
	}
	if !isDir && strings.HasSuffix(strings.ToLower(name), ".txt") {
		return KindText
	}
	if isDir {
		return KindFolder
	}
	return KindUnknown
}

// Classify derives the folder-level kind from all visible entries with
// fixed priority Archive > Text > Folder, independent of listing order.
// Metadata entries must be filtered out by the caller.
func Classify(entries []Entry) Kind {
	best := KindUnknown
	for _, entry := range entries {
		switch ClassifyEntry(entry.Name, entry.IsDir) {
		case KindArchive:
			return KindArchive
		case KindText:
			best = KindText
		case KindFolder:
			if best != KindText {
				best = KindFolder
			}
		}
	}
	return best
}
