package validation

import "testing"

func fptr(v float64) *float64 { return &v }

func TestValidatePositiveID(t *testing.T) {
	if err := ValidatePositiveID("user_id", 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, v := range []int64{0, -5} {
		if err := ValidatePositiveID("user_id", v); err == nil {
			t.Errorf("expected error for %d", v)
		}
	}
}

func TestValidateRating(t *testing.T) {
	for _, v := range []int{1, 3, 5} {
		if err := ValidateRating("rating", v); err != nil {
			t.Errorf("unexpected error for %d: %v", v, err)
		}
	}
	for _, v := range []int{0, 6, -1} {
		if err := ValidateRating("rating", v); err == nil {
			t.Errorf("expected error for %d", v)
		}
	}
}

func TestValidateEnum(t *testing.T) {
	allowed := []string{"view", "purchase"}
	if err := ValidateEnum("type", "view", allowed); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateEnum("type", "teleport", allowed); err == nil {
		t.Error("expected error for unknown value")
	}
}

func TestValidateRange(t *testing.T) {
	if err := ValidateRange("alpha", 0.5, 0, 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateRange("alpha", 1.5, 0, 1); err == nil {
		t.Error("expected error for out-of-range value")
	}
}

func TestValidatePriceBounds(t *testing.T) {
	tests := []struct {
		name     string
		min, max *float64
		wantErr  bool
	}{
		{"both nil", nil, nil, false},
		{"valid pair", fptr(10), fptr(50), false},
		{"min only", fptr(10), nil, false},
		{"inverted", fptr(50), fptr(10), true},
		{"negative min", fptr(-1), nil, true},
		{"negative max", nil, fptr(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePriceBounds("filter", tt.min, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	if c.HasErrors() {
		t.Error("new collector should have no errors")
	}
	c.Add(nil)
	if c.HasErrors() {
		t.Error("adding nil should not record an error")
	}
	c.Add(&ValidationError{Field: "user_id", Message: "is required"})
	c.Add(ValidateRating("rating", 9))
	if len(c.Errors()) != 2 {
		t.Errorf("expected 2 errors, got %d", len(c.Errors()))
	}
}
