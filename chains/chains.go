// Package chains holds the static capability table for the chains the
// coprocessor can prove against.
package chains

// Chain ids known to the coprocessor.
const (
	EthereumChainID        uint64 = 1
	OptimismChainID        uint64 = 10
	BaseChainID            uint64 = 8453
	LineaChainID           uint64 = 59144
	EthereumSepoliaChainID uint64 = 11155111
	OptimismSepoliaChainID uint64 = 11155420
	BaseSepoliaChainID     uint64 = 84532
	LineaSepoliaChainID    uint64 = 59141
)

// Network classifies a chain as production or test network.
type Network int

const (
	Mainnet Network = iota
	Testnet
)

func (n Network) String() string {
	if n == Testnet {
		return "testnet"
	}
	return "mainnet"
}

// Chain describes what the coprocessor may do with a chain.
type Chain struct {
	ID          uint64
	Name        string
	Network     Network
	L1Inclusion bool
}

var registry = map[uint64]Chain{
	EthereumChainID:        {ID: EthereumChainID, Name: "ethereum", Network: Mainnet},
	OptimismChainID:        {ID: OptimismChainID, Name: "optimism", Network: Mainnet, L1Inclusion: true},
	BaseChainID:            {ID: BaseChainID, Name: "base", Network: Mainnet, L1Inclusion: true},
	LineaChainID:           {ID: LineaChainID, Name: "linea", Network: Mainnet, L1Inclusion: true},
	EthereumSepoliaChainID: {ID: EthereumSepoliaChainID, Name: "sepolia", Network: Testnet},
	OptimismSepoliaChainID: {ID: OptimismSepoliaChainID, Name: "optimism-sepolia", Network: Testnet, L1Inclusion: true},
	BaseSepoliaChainID:     {ID: BaseSepoliaChainID, Name: "base-sepolia", Network: Testnet, L1Inclusion: true},
	LineaSepoliaChainID:    {ID: LineaSepoliaChainID, Name: "linea-sepolia", Network: Testnet, L1Inclusion: true},
}

// Lookup returns the table entry for chainID.
func Lookup(chainID uint64) (Chain, bool) {
	c, ok := registry[chainID]
	return c, ok
}

// SupportsL1Inclusion reports whether proofs for chainID may carry an L1
// inclusion guarantee. Unknown chains never do.
func SupportsL1Inclusion(chainID uint64) bool {
	return registry[chainID].L1Inclusion
}

// Name returns the human readable chain name, or "unknown".
func Name(chainID uint64) string {
	if c, ok := registry[chainID]; ok {
		return c.Name
	}
	return "unknown"
}
