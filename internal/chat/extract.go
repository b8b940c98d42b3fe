package chat

import (
	"strings"

	"github.com/dkoval/workshop-labs/internal/domain"
)

// ExtractFields pulls structured field values out of a running transcript.
// It looks for "field name: value" lines matching the section's schema, from
// either role; later occurrences win so corrections take effect.
func ExtractFields(transcript []domain.ChatMessage, section domain.Section) map[string]string {
	fields := section.Fields()
	extracted := make(map[string]string)

	for _, msg := range transcript {
		for _, line := range strings.Split(msg.Content, "\n") {
			name, value, ok := splitFieldLine(line)
			if !ok {
				continue
			}
			for _, f := range fields {
				if name == normalizeFieldName(f) {
					extracted[f] = value
				}
			}
		}
	}
	return extracted
}

// splitFieldLine parses a "label: value" line into a normalized label and
// trimmed value.
func splitFieldLine(line string) (name, value string, ok bool) {
	line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	name = normalizeFieldName(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}

// normalizeFieldName lowercases and collapses separators so "Brand Name",
// "brand_name" and "brand-name" all match the same schema field.
func normalizeFieldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "*_\"'")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-':
			b.WriteRune('_')
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}
