package patients

import "testing"

func TestGenerateReferralCode(t *testing.T) {
	tests := []struct {
		name, patient, phone, want string
	}{
		{"plain", "Raj Kumar", "919876543210", "RAJ3210"},
		{"skips punctuation", "A. J-o", "+91 98765 43210", "AJO3210"},
		{"non latin name", "राज", "9876543210", "PAT3210"},
		{"short phone", "Asha", "12", "ASH12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateReferralCode(tt.patient, tt.phone); got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestNormalizeAndMaskPhone(t *testing.T) {
	if got := NormalizePhone("+91 (987) 654-3210"); got != "+919876543210" {
		t.Fatalf("normalize: %s", got)
	}
	if got := MaskPhone("919876543210"); got != "919876..." {
		t.Fatalf("mask: %s", got)
	}
}

func TestIsIdle(t *testing.T) {
	var nilPatient *Patient
	if !nilPatient.IsIdle() {
		t.Fatal("nil patient should be idle")
	}
	p := &Patient{State: StateBookingAppointment}
	if p.IsIdle() {
		t.Fatal("booking patient should not be idle")
	}
	if (&Patient{}).DisplayName() != "there" {
		t.Fatal("expected fallback display name")
	}
}
