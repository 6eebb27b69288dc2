package stacks

import "fmt"

// Network selects the target Stacks network. It determines the transaction
// version byte, the chain id and the single-sig address version.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Valid reports whether the network selector is one of the known values.
func (n Network) Valid() bool {
	return n == NetworkMainnet || n == NetworkTestnet
}

// TransactionVersion returns the wire version byte for transactions.
func (n Network) TransactionVersion() byte {
	if n == NetworkMainnet {
		return 0x00
	}
	return 0x80
}

// ChainID returns the chain id committed into every transaction.
func (n Network) ChainID() uint32 {
	if n == NetworkMainnet {
		return 0x00000001
	}
	return 0x80000000
}

// AddressVersion returns the c32check version for single-sig addresses,
// yielding the familiar SP (mainnet) and ST (testnet) prefixes.
func (n Network) AddressVersion() byte {
	if n == NetworkMainnet {
		return 22
	}
	return 26
}

// ParseNetwork validates a network selector string.
func ParseNetwork(s string) (Network, error) {
	n := Network(s)
	if !n.Valid() {
		return "", fmt.Errorf("unknown network %q", s)
	}
	return n, nil
}
