package processors

import (
	"fmt"
	"strings"
)

// extractJSONObject scans stdout for the outermost JSON object: from the
// first '{' to the last '}' in the output, tolerating surrounding log noise
// that some engines mix into stdout alongside their JSON payload.
func extractJSONObject(stdout []byte) ([]byte, error) {
	s := string(stdout)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in output")
	}
	return []byte(s[start : end+1]), nil
}
