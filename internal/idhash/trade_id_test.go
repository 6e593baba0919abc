package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name         string
		tokenAddress string
		action       string
		timestampMs  int64
		sequence     int
		wantLen      int // hash length should be 64
	}{
		{
			name:         "buy trade",
			tokenAddress: "0xb5b9dEd77E24263Bb5996D66749BBc88CB89Bd7F",
			action:       "buy",
			timestampMs:  1704067234567,
			sequence:     0,
			wantLen:      64,
		},
		{
			name:         "sell trade",
			tokenAddress: "0x892d50AdaA07073C640C0bABE74c85Dd89edE8F0",
			action:       "sell",
			timestampMs:  1704067300000,
			sequence:     7,
			wantLen:      64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.tokenAddress, tt.action, tt.timestampMs, tt.sequence)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.tokenAddress, tt.action, tt.timestampMs, tt.sequence)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeIDUniqueness(t *testing.T) {
	base := ComputeTradeID("addr", "buy", 1704067234567, 0)

	variants := []string{
		ComputeTradeID("addr2", "buy", 1704067234567, 0),
		ComputeTradeID("addr", "sell", 1704067234567, 0),
		ComputeTradeID("addr", "buy", 1704067234568, 0),
		ComputeTradeID("addr", "buy", 1704067234567, 1),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base trade_id", i)
		}
	}
}
