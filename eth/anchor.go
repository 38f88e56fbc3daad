package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

const registryABIJSON = `[{
	"type": "function",
	"name": "submitRequest",
	"stateMutability": "payable",
	"inputs": [
		{"name": "requestId", "type": "bytes32"},
		{"name": "imageId", "type": "bytes32"},
		{"name": "input", "type": "bytes"}
	],
	"outputs": []
}]`

const submitRequestMethod = "submitRequest"

var ErrTxReverted = errors.New("anchor transaction reverted")

var registryABI = mustParseABI(registryABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PackSubmitRequest returns the calldata of submitRequest(bytes32,bytes32,bytes).
func PackSubmitRequest(requestID, imageID common.Hash, input []byte) ([]byte, error) {
	return registryABI.Pack(submitRequestMethod, requestID, imageID, input)
}

// Anchorer publishes market requests to the on-chain request registry.
type Anchorer struct {
	client   *Client
	contract *bind.BoundContract
	registry common.Address
	key      *ecdsa.PrivateKey
	gasLimit uint64
	log      *logrus.Logger

	// serializes nonce assignment across concurrent submissions
	mu sync.Mutex
}

var _ prover.Anchorer = (*Anchorer)(nil)

// NewAnchorer signs with the hex encoded private key. A zero gasLimit lets
// the node estimate gas.
func NewAnchorer(client *Client, registry common.Address, privateKeyHex string, gasLimit uint64, log *logrus.Logger) (*Anchorer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid anchor private key: %w", err)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Anchorer{
		client:   client,
		contract: bind.NewBoundContract(registry, registryABI, client.Eth, client.Eth, client.Eth),
		registry: registry,
		key:      key,
		gasLimit: gasLimit,
		log:      log,
	}, nil
}

func (a *Anchorer) From() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

// SubmitRequest sends one submitRequest transaction and blocks until it is
// mined. It never resends.
func (a *Anchorer) SubmitRequest(ctx context.Context, requestID, imageID common.Hash, input []byte) (common.Hash, error) {
	a.mu.Lock()
	tx, err := a.send(ctx, requestID, imageID, input)
	a.mu.Unlock()
	if err != nil {
		return common.Hash{}, err
	}
	a.log.Infof("Sent anchor tx %s for request %s to %s", tx.Hash().Hex(), requestID.Hex(), a.registry.Hex())

	receipt, err := bind.WaitMined(ctx, a.client.Eth, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("failed waiting for anchor tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("%w: %s in block %d", ErrTxReverted, tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}
	a.log.Debugf("Anchor tx %s mined in block %d, gas used %d", tx.Hash().Hex(), receipt.BlockNumber.Uint64(), receipt.GasUsed)
	return tx.Hash(), nil
}

func (a *Anchorer) send(ctx context.Context, requestID, imageID common.Hash, input []byte) (*ethtypes.Transaction, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(a.key, a.client.ChainID())
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = a.gasLimit

	tx, err := a.contract.Transact(opts, submitRequestMethod, requestID, imageID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to send anchor tx: %w", err)
	}
	return tx, nil
}

// GenerateKey returns a fresh secp256k1 key as hex together with its address.
func GenerateKey() (string, common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", common.Address{}, err
	}
	return common.Bytes2Hex(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey), nil
}
