package domain

import "testing"

func TestSectionsOrder(t *testing.T) {
	want := []Section{
		SectionIdentity,
		SectionAudience,
		SectionOffer,
		SectionStory,
		SectionChannels,
		SectionReview,
	}
	got := Sections()
	if len(got) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	// Callers may mutate the returned slice without corrupting the order.
	got[0] = "mutated"
	if Sections()[0] != SectionIdentity {
		t.Error("Sections() must return a copy")
	}
}

func TestValidSection(t *testing.T) {
	for _, section := range Sections() {
		if !ValidSection(string(section)) {
			t.Errorf("%s should be valid", section)
		}
	}
	for _, name := range []string{"", "Identity", "identity ", "settings", "nonsense"} {
		if ValidSection(name) {
			t.Errorf("%q should not be valid", name)
		}
	}
}

func TestSectionFields(t *testing.T) {
	for _, section := range Sections() {
		fields := section.Fields()
		if len(fields) == 0 {
			t.Errorf("%s has no fields", section)
			continue
		}
		for _, f := range fields {
			if !section.HasField(f) {
				t.Errorf("%s: HasField(%q) should be true", section, f)
			}
		}
		if section.HasField("nonsense") {
			t.Errorf("%s: HasField(nonsense) should be false", section)
		}

		required := section.RequiredFields()
		if len(required) != 1 || required[0] != fields[0] {
			t.Errorf("%s: first field should be the only required one, got %v", section, required)
		}
	}
}

func TestRecordEmptyAndComplete(t *testing.T) {
	rec := &SectionRecord{SectionName: SectionIdentity, InputData: map[string]string{}}
	if !rec.Empty() {
		t.Error("record with no values should be empty")
	}
	if rec.Complete() {
		t.Error("empty record should not be complete")
	}

	rec.InputData["brand_name"] = "  "
	if !rec.Empty() {
		t.Error("whitespace-only values still count as empty")
	}

	rec.InputData["brand_name"] = "Acme"
	if rec.Empty() {
		t.Error("record with a value should not be empty")
	}
	if !rec.Complete() {
		t.Error("required field filled, record should be complete")
	}
	if rec.Field("brand_name") != "Acme" {
		t.Errorf("Field lookup failed: %q", rec.Field("brand_name"))
	}
	if rec.Field("missing") != "" {
		t.Error("missing field should read as empty")
	}
}
