// Package types provides common type definitions for the trading simulator system.
package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainFamily is the coarse classification of a blockchain network.
type ChainFamily string

const (
	// FamilyEVM represents EVM-compatible networks
	FamilyEVM ChainFamily = "evm"
	// FamilySVM represents SVM-compatible networks
	FamilySVM ChainFamily = "svm"
)

// SpecificChain identifies a concrete network inside a chain family.
type SpecificChain string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum SpecificChain = "eth"
	// ChainPolygon represents the Polygon network
	ChainPolygon SpecificChain = "polygon"
	// ChainBSC represents the BNB Smart Chain
	ChainBSC SpecificChain = "bsc"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum SpecificChain = "arbitrum"
	// ChainBase represents the Base network
	ChainBase SpecificChain = "base"
	// ChainOptimism represents the Optimism network
	ChainOptimism SpecificChain = "optimism"
	// ChainSVM represents the single SVM network
	ChainSVM SpecificChain = "svm"
)

// EVMChains is the probe order used when the specific EVM network of a token
// is not yet known. More liquid networks first.
var EVMChains = []SpecificChain{
	ChainEthereum,
	ChainPolygon,
	ChainBase,
	ChainArbitrum,
	ChainOptimism,
	ChainBSC,
}

// FamilyOf maps a specific chain to its chain family. The mapping is total:
// every specific chain belongs to exactly one family.
func FamilyOf(chain SpecificChain) ChainFamily {
	if chain == ChainSVM {
		return FamilySVM
	}
	return FamilyEVM
}

// ClassifyToken determines the best-known chain family and specific network for
// a token address from its textual shape alone. A 0x-prefixed 40-hex-digit
// string is EVM-family with the specific network undetermined; anything else is
// SVM-family on the single SVM network. This is a heuristic: the actual EVM
// network can only be confirmed by a price source that answers for it.
func ClassifyToken(token string) (ChainFamily, SpecificChain) {
	// common.IsHexAddress also accepts unprefixed hex, so require the 0x prefix.
	if strings.HasPrefix(token, "0x") && common.IsHexAddress(token) {
		return FamilyEVM, ""
	}
	return FamilySVM, ChainSVM
}

// CompetitionStatus represents the lifecycle state of a competition.
type CompetitionStatus string

const (
	// CompetitionPending represents a created competition that has not started
	CompetitionPending CompetitionStatus = "pending"
	// CompetitionActive represents the currently running competition
	CompetitionActive CompetitionStatus = "active"
	// CompetitionCompleted represents an ended competition
	CompetitionCompleted CompetitionStatus = "completed"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return e.Code + ": " + e.Message
}
