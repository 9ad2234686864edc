package amd64

import "strings"

// Indents every line that is neither a label (ends with ':') nor a directive
// (starts with '.') by four spaces. Pure textual post-processing to make the
// emitted assembly pleasant to read, the assembler does not care either way.
func Format(lines []string) []string {
	formatted := make([]string, 0, len(lines))
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if !strings.HasPrefix(stripped, ".") && !strings.HasSuffix(stripped, ":") {
			line = "    " + line
		}
		formatted = append(formatted, line)
	}
	return formatted
}
