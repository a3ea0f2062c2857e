package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSalaryRendersTwoDecimalPlaces(t *testing.T) {
	s, err := SalaryFromString("75000")
	if err != nil {
		t.Fatalf("parse salary: %v", err)
	}
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal salary: %v", err)
	}
	if string(out) != `"75000.00"` {
		t.Fatalf("expected \"75000.00\", got %s", out)
	}
}

func TestSalaryRejectsExcessPrecision(t *testing.T) {
	if _, err := SalaryFromString("100.555"); err != ErrSalaryTooPrecise {
		t.Fatalf("expected precision error, got %v", err)
	}
	if _, err := SalaryFromString("100000000.00"); err != ErrSalaryTooLarge {
		t.Fatalf("expected size error, got %v", err)
	}
	if _, err := SalaryFromString("not-a-number"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSalaryJSONRoundTrip(t *testing.T) {
	var s Salary
	if err := json.Unmarshal([]byte(`85000.50`), &s); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if s.String() != "85000.50" {
		t.Fatalf("expected 85000.50, got %s", s.String())
	}

	var fromString Salary
	if err := json.Unmarshal([]byte(`"85000.50"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if !s.Equal(fromString) {
		t.Fatalf("number and string forms should be equal")
	}

	if err := json.Unmarshal([]byte(`12.345`), &s); err == nil {
		t.Fatalf("expected error for three decimal places")
	}
}

func TestSalaryEqualIgnoresScale(t *testing.T) {
	a, _ := NewSalary(decimal.NewFromInt(500))
	b, _ := SalaryFromString("500.00")
	if !a.Equal(b) {
		t.Fatalf("500 and 500.00 should compare equal")
	}
}
