package opinions

import "strings"

// ExtractJSONBlock pulls the first JSON object or array out of free-form LLM
// output. Handles fenced blocks, leading prose and trailing chatter; returns
// "" when no candidate payload exists. Never panics on malformed input.
func ExtractJSONBlock(text string) string {
	s := strings.TrimSpace(text)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		// Skip the info string ("json", "JSON", ...)
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	s = s[start:]

	var closer byte = '}'
	if s[0] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= 0 {
		return ""
	}
	return s[:end+1]
}

// StripTrailingCommas removes commas that directly precede a closing brace
// or bracket, a tolerance some models need. String contents are preserved.
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}

		if c == ',' {
			// Look ahead past whitespace for a closer
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}

		b.WriteByte(c)
	}

	return b.String()
}
