package enums

import "testing"

func TestParsePaymentMethod(t *testing.T) {
	for _, value := range []string{"cash", "card", "paypal", "mobile_money"} {
		method, err := ParsePaymentMethod(value)
		if err != nil {
			t.Fatalf("ParsePaymentMethod(%q) failed: %v", value, err)
		}
		if method.String() != value {
			t.Fatalf("parsed %q, want %q", method, value)
		}
	}

	if _, err := ParsePaymentMethod("cheque"); err == nil {
		t.Fatal("unknown method must be rejected")
	}
}
