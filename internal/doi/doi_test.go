// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doi

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"10.1007/978-3-540-85174-5_1", "10.1007/978-3-540-85174-5_1"},
		{"  10.1145/1234  ", "10.1145/1234"},
		{"https://doi.org/10.1109/SP.2008.1", "10.1109/SP.2008.1"},
		{"http://dx.doi.org/10.1137/1.9781611973105.1", "10.1137/1.9781611973105.1"},
		{"DOI:10.14722/ndss.2020.1", "10.14722/ndss.2020.1"},
		{"doi: 10.4230/LIPIcs.ICALP.2020.1", "10.4230/LIPIcs.ICALP.2020.1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"springer", "10.1007/978-3-540-85174-5_1", true},
		{"url form", "https://doi.org/10.1145/1234", true},
		{"short registrant", "10.12/abc", false},
		{"no suffix", "10.1007/", false},
		{"space in suffix", "10.1007/a b", false},
		{"not a doi", "arXiv:2301.00001", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.input); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"10.1007/978-3-540-85174-5_1", "10.1007"},
		{"https://doi.org/10.46586/tches.v2021.i1.1-28", "10.46586"},
		{"10.56553/popets-2022-0001", "10.56553"},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := Prefix(tt.input); got != tt.want {
			t.Errorf("Prefix(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("10.1109/SP.2008.1", "https://doi.org/10.1109/sp.2008.1") {
		t.Error("expected DOIs to compare equal")
	}
	if Equal("10.1109/SP.2008.1", "10.1109/SP.2008.2") {
		t.Error("expected DOIs to differ")
	}
}
