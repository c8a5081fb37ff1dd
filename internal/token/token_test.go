package token

import "testing"

func TestToRaw(t *testing.T) {
	cases := []struct {
		whole    uint64
		decimals uint8
		want     uint64
	}{
		{25, 6, 25_000_000},
		{2, 6, 2_000_000},
		{50, 0, 50},
		{1, 9, 1_000_000_000},
	}
	for _, tc := range cases {
		if got := ToRaw(tc.whole, tc.decimals); got != tc.want {
			t.Fatalf("ToRaw(%d, %d) = %d, want %d", tc.whole, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatRaw(t *testing.T) {
	cases := []struct {
		raw      uint64
		decimals uint8
		want     string
	}{
		{25_000_000, 6, "25.000000"},
		{2_000_001, 6, "2.000001"},
		{999, 3, "0.999"},
		{50, 0, "50"},
	}
	for _, tc := range cases {
		if got := FormatRaw(tc.raw, tc.decimals); got != tc.want {
			t.Fatalf("FormatRaw(%d, %d) = %q, want %q", tc.raw, tc.decimals, got, tc.want)
		}
	}
}

func TestDeriveAccountAddressDeterministic(t *testing.T) {
	first := DeriveAccountAddress("0xmint", "0xowner")
	second := DeriveAccountAddress("0xmint", "0xowner")
	if first != second {
		t.Fatalf("derivation not deterministic: %s vs %s", first, second)
	}

	other := DeriveAccountAddress("0xmint", "0xother")
	if first == other {
		t.Fatal("different owners derived the same account")
	}
}
