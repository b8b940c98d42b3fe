// Package domain contains core domain types for the workshop application.
package domain

// Section identifies one fixed stage of the workshop. Each section carries
// its own form schema; values outside the enumerated set are rejected at the
// API boundary.
type Section string

const (
	SectionIdentity Section = "identity"
	SectionAudience Section = "audience"
	SectionOffer    Section = "offer"
	SectionStory    Section = "story"
	SectionChannels Section = "channels"
	SectionReview   Section = "review"
)

// sectionOrder is the presentation order of the workshop stages.
var sectionOrder = []Section{
	SectionIdentity,
	SectionAudience,
	SectionOffer,
	SectionStory,
	SectionChannels,
	SectionReview,
}

// sectionFields maps each section to its form field names, in display order.
// The first field of every section is required; the rest are optional.
var sectionFields = map[Section][]string{
	SectionIdentity: {"brand_name", "mission", "core_values"},
	SectionAudience: {"primary_audience", "pain_points", "desires"},
	SectionOffer:    {"product", "promise", "proof"},
	SectionStory:    {"origin_story", "transformation"},
	SectionChannels: {"primary_channel", "content_pillars"},
	SectionReview:   {"summary", "next_steps"},
}

// Sections returns all workshop sections in presentation order.
func Sections() []Section {
	out := make([]Section, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// ValidSection reports whether name is a known section.
func ValidSection(name string) bool {
	_, ok := sectionFields[Section(name)]
	return ok
}

// Fields returns the form field names for the section.
func (s Section) Fields() []string {
	fields := sectionFields[s]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// RequiredFields returns the fields that must be non-empty for the section
// to validate. Validation is advisory: a failing record still saves.
func (s Section) RequiredFields() []string {
	fields := sectionFields[s]
	if len(fields) == 0 {
		return nil
	}
	return []string{fields[0]}
}

// HasField reports whether name is part of the section's form schema.
func (s Section) HasField(name string) bool {
	for _, f := range sectionFields[s] {
		if f == name {
			return true
		}
	}
	return false
}
