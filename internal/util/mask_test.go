package util

import "testing"

func TestMaskToken(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"corto", "***"},
		{"eyJhbGciOiJSUzI1NiIsImtpZCI6ImtpZC0xIn0.payload.sig", "eyJhbGci…"},
	}
	for _, tc := range cases {
		if got := MaskToken(tc.in); got != tc.want {
			t.Fatalf("MaskToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskSubject(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"ab", "***"},
		{"user-42", "us…42"},
	}
	for _, tc := range cases {
		if got := MaskSubject(tc.in); got != tc.want {
			t.Fatalf("MaskSubject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
