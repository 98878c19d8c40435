package report

import (
	"os"
	"regexp"
	"strings"

	appErr "autojunit/pkg/errors"
)

var (
	testAnnotationPattern = regexp.MustCompile(`^@Test\b`)
	methodNamePattern     = regexp.MustCompile(`([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
)

// DiscoverDeclared scans a harness source file and returns the names of
// its @Test methods in declaration order. Used when the configuration
// does not pin the expected test case names explicitly.
func DiscoverDeclared(harnessPath string) ([]string, error) {
	content, err := os.ReadFile(harnessPath)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.HarnessAbsent, "read harness source failed")
	}

	var names []string
	armed := false
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			if testAnnotationPattern.MatchString(trimmed) {
				armed = true
				// the method may share a line with its annotation
				if name, ok := firstMethodName(trimmed[len("@Test"):]); ok {
					names = append(names, name)
					armed = false
				}
			}
			continue
		}
		if !armed {
			continue
		}
		if name, ok := firstMethodName(trimmed); ok {
			names = append(names, name)
			armed = false
		}
	}

	if len(names) == 0 {
		return nil, appErr.Newf(appErr.ReportIncomplete, "no test methods found in %s", harnessPath)
	}
	return names, nil
}

func firstMethodName(s string) (string, bool) {
	m := methodNamePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
