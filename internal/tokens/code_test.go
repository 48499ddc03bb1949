package tokens

import "testing"

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateCode(20)
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 20 {
			t.Fatalf("unexpected length %d", len(code))
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestGenerateCodeDefaultsLength(t *testing.T) {
	code, err := generateCode(0)
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if len(code) != 20 {
		t.Fatalf("unexpected default length %d", len(code))
	}
}
