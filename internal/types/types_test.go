package types

import "testing"

func TestClassifyToken(t *testing.T) {
	tests := []struct {
		name         string
		token        string
		wantFamily   ChainFamily
		wantSpecific SpecificChain
	}{
		{
			name:         "EVM address",
			token:        "0x6B175474E89094C44Da98b954EedeAC495271d0F",
			wantFamily:   FamilyEVM,
			wantSpecific: "",
		},
		{
			name:         "EVM address lowercase",
			token:        "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			wantFamily:   FamilyEVM,
			wantSpecific: "",
		},
		{
			name:         "SVM mint",
			token:        "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			wantFamily:   FamilySVM,
			wantSpecific: ChainSVM,
		},
		{
			name:         "40 hex digits without 0x prefix is not EVM",
			token:        "6B175474E89094C44Da98b954EedeAC495271d0F",
			wantFamily:   FamilySVM,
			wantSpecific: ChainSVM,
		},
		{
			name:         "0x prefix but too short",
			token:        "0x6B1754",
			wantFamily:   FamilySVM,
			wantSpecific: ChainSVM,
		},
		{
			name:         "0x prefix with non-hex characters",
			token:        "0xZZ175474E89094C44Da98b954EedeAC495271d0F",
			wantFamily:   FamilySVM,
			wantSpecific: ChainSVM,
		},
		{
			name:         "empty string",
			token:        "",
			wantFamily:   FamilySVM,
			wantSpecific: ChainSVM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, specific := ClassifyToken(tt.token)
			if family != tt.wantFamily {
				t.Errorf("Expected family %s, got %s", tt.wantFamily, family)
			}
			if specific != tt.wantSpecific {
				t.Errorf("Expected specific chain %q, got %q", tt.wantSpecific, specific)
			}
		})
	}
}

func TestFamilyOf(t *testing.T) {
	if got := FamilyOf(ChainSVM); got != FamilySVM {
		t.Errorf("Expected svm family for svm chain, got %s", got)
	}
	for _, chain := range EVMChains {
		if got := FamilyOf(chain); got != FamilyEVM {
			t.Errorf("Expected evm family for %s, got %s", chain, got)
		}
	}
}

func TestEVMChainsStartWithEthereum(t *testing.T) {
	if len(EVMChains) == 0 || EVMChains[0] != ChainEthereum {
		t.Errorf("Expected Ethereum first in probe order, got %v", EVMChains)
	}
}
