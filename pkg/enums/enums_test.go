package enums

import "testing"

func TestParsePaymentOptionAcceptsLegacyCodes(t *testing.T) {
	cases := map[string]PaymentOption{
		"stripe":  PaymentOptionStripe,
		" PayPal": PaymentOptionPaypal,
		"S":       PaymentOptionStripe,
		"p":       PaymentOptionPaypal,
	}
	for raw, want := range cases {
		got, err := ParsePaymentOption(raw)
		if err != nil {
			t.Fatalf("ParsePaymentOption(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParsePaymentOption(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, err := ParsePaymentOption("bitcoin"); err == nil {
		t.Fatal("expected unknown option to fail")
	}
}

func TestParseQuantityDirection(t *testing.T) {
	if d, err := ParseQuantityDirection("Increment"); err != nil || d != QuantityIncrement {
		t.Fatalf("expected increment, got %q err=%v", d, err)
	}
	if _, err := ParseQuantityDirection("sideways"); err == nil {
		t.Fatal("expected invalid direction to fail")
	}
}

func TestParseItemCategoryIsExact(t *testing.T) {
	if c, err := ParseItemCategory("sport_wear"); err != nil || c != ItemCategorySportWear {
		t.Fatalf("expected sport_wear, got %q err=%v", c, err)
	}
	if _, err := ParseItemCategory("Shirt"); err == nil {
		t.Fatal("expected case mismatch to fail")
	}
}

func TestUserRoleValidity(t *testing.T) {
	if !UserRoleOperator.IsValid() || !UserRoleCustomer.IsValid() {
		t.Fatal("expected known roles to be valid")
	}
	if UserRole("admin").IsValid() {
		t.Fatal("expected unknown role to be invalid")
	}
}
