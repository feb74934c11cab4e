package csvio

import "testing"

func TestSanitizeForCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"plain value untouched", "ACC123", "ACC123"},
		{"empty value untouched", "", ""},
		{"formula prefix escaped", "=SUM(A1:A9)", "'=SUM(A1:A9)"},
		{"plus prefix escaped", "+1234", "'+1234"},
		{"minus prefix escaped", "-1234", "'-1234"},
		{"at prefix escaped", "@cmd", "'@cmd"},
		{"embedded tab escaped", "abc\tdef", "'abc\tdef"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeForCSV(tt.value); got != tt.want {
				t.Errorf("SanitizeForCSV(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestPseudonymizeAccountIDRequiresSalt(t *testing.T) {
	t.Parallel()

	if _, err := PseudonymizeAccountID("ACC1", ""); err == nil {
		t.Error("expected an error with an empty salt")
	}
	if _, err := PseudonymizeAccountID("ACC1", "   "); err == nil {
		t.Error("expected an error with a whitespace-only salt")
	}
}

func TestPseudonymizeAccountIDIsStableAndDistinct(t *testing.T) {
	t.Parallel()

	a1, err := PseudonymizeAccountID("ACC1", "pepper")
	if err != nil {
		t.Fatalf("PseudonymizeAccountID() error = %v", err)
	}
	a1Again, err := PseudonymizeAccountID("ACC1", "pepper")
	if err != nil {
		t.Fatalf("PseudonymizeAccountID() error = %v", err)
	}
	if a1 != a1Again {
		t.Errorf("expected the same (account, salt) pair to pseudonymize identically")
	}

	a2, err := PseudonymizeAccountID("ACC2", "pepper")
	if err != nil {
		t.Fatalf("PseudonymizeAccountID() error = %v", err)
	}
	if a1 == a2 {
		t.Errorf("expected different accounts to pseudonymize differently")
	}

	if len(a1) != 64 {
		t.Errorf("expected a 64-character hex digest, got length %d", len(a1))
	}
}
