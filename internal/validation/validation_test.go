package validation

import (
	"testing"
)

func TestIsValidProcessorID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"stripe", true},
		{"paypal", true},
		{"crossmint", true},
		{"square_pos", true},
		{"adyen2", true},

		// Invalid cases
		{"Stripe", false},   // Uppercase
		{"s", false},        // Too short
		{"2stripe", false},  // Leading digit
		{"stri pe", false},  // Space
		{"stripe-eu", false}, // Dash
		{"", false},
	}

	for _, tc := range tests {
		result := IsValidProcessorID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidProcessorID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestIsValidCurrency(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"usd", true},
		{"eur", true},
		{"gbp", true},

		{"USD", false},
		{"us", false},
		{"usdc", false},
		{"", false},
	}

	for _, tc := range tests {
		result := IsValidCurrency(tc.code)
		if result != tc.valid {
			t.Errorf("IsValidCurrency(%q) = %v, want %v", tc.code, result, tc.valid)
		}
	}
}

func TestSanitizeCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Crypto Exchange", "crypto exchange"},
		{"  B2B SaaS  ", "b2b saas"},
		{"retail", "retail"},
	}

	for _, tc := range tests {
		result := SanitizeCategory(tc.input)
		if result != tc.expected {
			t.Errorf("SanitizeCategory(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("category", "b2b saas"),
		ValidProcessor("processor", "stripe"),
		PositiveAmount("amount_cents", 5000),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("category", ""),
		ValidProcessor("processor", "Not A Processor"),
		PositiveAmount("amount_cents", -100),
	)
	if len(errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(errors))
	}
}

func TestPositiveAmount(t *testing.T) {
	tests := []struct {
		cents int64
		valid bool
	}{
		{1, true},
		{5000, true},
		{999999, true},

		{0, false},
		{-1, false},
	}

	for _, tc := range tests {
		err := PositiveAmount("amount_cents", tc.cents)()
		valid := err == nil
		if valid != tc.valid {
			t.Errorf("PositiveAmount(%d) valid=%v, want %v", tc.cents, valid, tc.valid)
		}
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
