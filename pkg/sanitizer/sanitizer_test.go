package sanitizer

import (
	"reflect"
	"testing"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello   world  ", "hello world"},
		{"line\nbreaks\tand\ttabs", "line breaks and tabs"},
		{"already clean", "already clean"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := TrimAndNormalize(tt.input); got != tt.want {
			t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Clinical Psychology", "clinical_psychology"},
		{"  CBT & EMDR  ", "cbt_emdr"},
		{"child--and—adolescent", "child_and_adolescent"},
		{"___already_tokens___", "already_tokens"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeLabel(tt.input); got != tt.want {
			t.Errorf("SanitizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeSlice_DropsEmptyAndDuplicates(t *testing.T) {
	got := SanitizeSlice([]string{"CBT", "cbt", "  ", "EMDR"}, SanitizeLabel)
	want := []string{"cbt", "emdr"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SanitizeSlice = %v, want %v", got, want)
	}
}
