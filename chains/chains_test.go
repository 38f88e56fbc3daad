package chains

import "testing"

func TestSupportsL1Inclusion(t *testing.T) {
	tests := []struct {
		chainID uint64
		want    bool
	}{
		{OptimismChainID, true},
		{BaseChainID, true},
		{LineaChainID, true},
		{OptimismSepoliaChainID, true},
		{BaseSepoliaChainID, true},
		{LineaSepoliaChainID, true},
		{EthereumChainID, false},
		{EthereumSepoliaChainID, false},
		{0, false},
		{137, false},
		{^uint64(0), false},
	}
	for _, tt := range tests {
		if got := SupportsL1Inclusion(tt.chainID); got != tt.want {
			t.Errorf("SupportsL1Inclusion(%d) = %v, want %v", tt.chainID, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	c, ok := Lookup(LineaSepoliaChainID)
	if !ok {
		t.Fatal("linea sepolia missing from table")
	}
	if c.Network != Testnet {
		t.Errorf("network = %v, want testnet", c.Network)
	}
	if c.Name != "linea-sepolia" {
		t.Errorf("name = %q", c.Name)
	}

	if _, ok := Lookup(42); ok {
		t.Error("unexpected entry for chain 42")
	}
	if Name(42) != "unknown" {
		t.Errorf("Name(42) = %q, want unknown", Name(42))
	}
}
