package chat

import (
	"testing"

	"github.com/dkoval/workshop-labs/internal/domain"
)

func msg(role domain.ChatRole, content string) domain.ChatMessage {
	return domain.ChatMessage{Role: role, Content: content, Section: domain.SectionIdentity}
}

func TestExtractFields(t *testing.T) {
	tests := []struct {
		name       string
		transcript []domain.ChatMessage
		expected   map[string]string
	}{
		{
			name: "plain field line",
			transcript: []domain.ChatMessage{
				msg(domain.RoleAssistant, "brand_name: Acme Coffee"),
			},
			expected: map[string]string{"brand_name": "Acme Coffee"},
		},
		{
			name: "spaced and title-cased label",
			transcript: []domain.ChatMessage{
				msg(domain.RoleAssistant, "Brand Name: Acme Coffee"),
			},
			expected: map[string]string{"brand_name": "Acme Coffee"},
		},
		{
			name: "bulleted list",
			transcript: []domain.ChatMessage{
				msg(domain.RoleAssistant, "Here's what we have:\n- mission: Better mornings for everyone\n- core values: craft, honesty, warmth"),
			},
			expected: map[string]string{
				"mission":     "Better mornings for everyone",
				"core_values": "craft, honesty, warmth",
			},
		},
		{
			name: "later occurrence wins",
			transcript: []domain.ChatMessage{
				msg(domain.RoleAssistant, "brand name: Acme"),
				msg(domain.RoleUser, "actually, brand name: Acme Coffee Co"),
			},
			expected: map[string]string{"brand_name": "Acme Coffee Co"},
		},
		{
			name: "unrelated labels ignored",
			transcript: []domain.ChatMessage{
				msg(domain.RoleAssistant, "note: this is not a schema field\nbudget: $100"),
			},
			expected: map[string]string{},
		},
		{
			name: "empty value skipped",
			transcript: []domain.ChatMessage{
				msg(domain.RoleAssistant, "brand name:   "),
			},
			expected: map[string]string{},
		},
		{
			name: "user messages count too",
			transcript: []domain.ChatMessage{
				msg(domain.RoleUser, "mission: Serve the best espresso in town"),
			},
			expected: map[string]string{"mission": "Serve the best espresso in town"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFields(tt.transcript, domain.SectionIdentity)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
			for k, v := range tt.expected {
				if got[k] != v {
					t.Errorf("field %q: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"Brand Name", "brand_name"},
		{"brand-name", "brand_name"},
		{"  Core   Values  ", "core_values"},
		{"**mission**", "mission"},
		{"\"promise\"", "promise"},
		{"next_steps", "next_steps"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeFieldName(tt.in); got != tt.out {
			t.Errorf("normalizeFieldName(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}
