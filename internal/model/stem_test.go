package model

import "testing"

func TestMerchantStem(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips punctuation and digits", "IFOOD*RESTAURANTE 03/12", "ifood restaurante"},
		{"collapses whitespace", "  UBER   TRIP  ", "uber trip"},
		{"keeps accented letters", "PADARIA SÃO JOÃO", "padaria são joão"},
		{"digits only", "123456", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MerchantStem(tt.in); got != tt.want {
				t.Errorf("MerchantStem(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseInstallment(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantCurrent int
		wantTotal   int
		wantOK      bool
	}{
		{"plain marker", "LOJAS AMERICANAS PARC 02/10", 2, 10, true},
		{"spaced marker", "MAGAZINE LUIZA 3 / 6", 3, 6, true},
		{"current past total", "FOO 13/2", 0, 0, false},
		{"single installment is not a chain", "FOO 1/1", 0, 0, false},
		{"no marker", "UBER TRIP", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, total, ok := ParseInstallment(tt.in)
			if ok != tt.wantOK || current != tt.wantCurrent || total != tt.wantTotal {
				t.Errorf("ParseInstallment(%q) = (%d, %d, %v), want (%d, %d, %v)",
					tt.in, current, total, ok, tt.wantCurrent, tt.wantTotal, tt.wantOK)
			}
		})
	}
}
