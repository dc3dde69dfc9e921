package domain

import (
	"testing"
	"unicode/utf8"
)

func FuzzParseEnvelopeID(f *testing.F) {
	for _, seed := range []string{
		"",
		"3f2b8c1e-4d5a-4c3b-9f1e-2a6b7c8d9e0f",
		"urn:uuid:3f2b8c1e-4d5a-4c3b-9f1e-2a6b7c8d9e0f",
		"00000000-0000-0000-0000-000000000000",
		"{3f2b8c1e-4d5a-4c3b-9f1e-2a6b7c8d9e0f}",
		"\xff\xfe",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		got, err := ParseEnvelopeID(input)
		if err != nil {
			return
		}
		if got.IsNil() {
			t.Fatalf("accepted nil id from %q", input)
		}
		if !utf8.ValidString(input) {
			t.Fatalf("accepted invalid utf8 %q", input)
		}
		again, err := ParseEnvelopeID(got.String())
		if err != nil || again != got {
			t.Fatalf("canonical form of %q does not parse back: %v", input, err)
		}
	})
}

func FuzzParsersAgree(f *testing.F) {
	f.Add("3f2b8c1e-4d5a-4c3b-9f1e-2a6b7c8d9e0f")
	f.Add("signer")

	f.Fuzz(func(t *testing.T, input string) {
		ps := parsers()
		_, first := ps[0].parse(input)
		for _, p := range ps[1:] {
			if _, err := p.parse(input); (err == nil) != (first == nil) {
				t.Fatalf("%s disagrees with %s on %q", p.kind, ps[0].kind, input)
			}
		}
	})
}
