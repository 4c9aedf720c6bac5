package language

import "testing"

func TestFromCode(t *testing.T) {
	tests := []struct {
		code     string
		wantOK   bool
		wantName string
	}{
		{"en", true, "English"},
		{"ko", true, "Korean"},
		{"zh", true, "Chinese"},
		{"invalid", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := FromCode(tt.code)
			if ok != tt.wantOK {
				t.Errorf("FromCode(%q) ok = %v, want %v", tt.code, ok, tt.wantOK)
			}
			if got.Name != tt.wantName {
				t.Errorf("FromCode(%q).Name = %q, want %q", tt.code, got.Name, tt.wantName)
			}
		})
	}
}

func TestName(t *testing.T) {
	if got := Name("ja"); got != "Japanese" {
		t.Errorf("Name(ja) = %q, want Japanese", got)
	}
	// unknown codes pass through so instructions stay readable
	if got := Name("xx"); got != "xx" {
		t.Errorf("Name(xx) = %q, want passthrough", got)
	}
}

func TestIsValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"en", true},
		{"ko", true},
		{"zh", true},
		{"invalid", false},
		{"", false},
		{"xyz", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := IsValidCode(tt.code); got != tt.want {
				t.Errorf("IsValidCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestListAndCodes(t *testing.T) {
	list := List()
	codes := Codes()
	if len(list) != len(codes) {
		t.Fatalf("List() has %d entries, Codes() has %d", len(list), len(codes))
	}

	found := false
	for _, lang := range list {
		if lang.Code == "ko" {
			found = true
			break
		}
	}
	if !found {
		t.Error("List() does not contain Korean")
	}
}
