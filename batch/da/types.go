package da

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	SDK "github.com/availproject/avail-go-sdk/sdk"
	client "github.com/celestiaorg/celestia-openrpc"
	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/vedhavyas/go-subkey/v2"

	"github.com/airchains-network/zk-coprocessor/prover"
)

const (
	TypeCelestia = "celestia"
	TypeAvail    = "avail"

	defaultAttempts = 3
	maxBackoff      = time.Minute
)

// Publication locates a proof published to a DA layer.
type Publication struct {
	Layer      string `json:"layer"`
	Height     uint64 `json:"height"`
	TxHash     string `json:"tx_hash,omitempty"`
	Commitment string `json:"commitment"`
}

func (p *Publication) String() string {
	if p.TxHash != "" {
		return fmt.Sprintf("%s:%d:%s", p.Layer, p.Height, p.TxHash)
	}
	return fmt.Sprintf("%s:%d:%s", p.Layer, p.Height, p.Commitment)
}

// DAClient defines a common interface for DA submissions
type DAClient interface {
	Name() string
	SubmitToDA(ctx context.Context, data []byte) (*Publication, error)
}

// AvailClient wraps the Avail SDK client for DA submissions
type AvailClient struct {
	Client    SDK.SDK
	Namespace uint32 // Avail AppID (Namespace)
	Account   subkey.KeyPair
	Attempts  int
	log       *logrus.Logger
}

// CelestiaClient wraps the Celestia  Light client for DA submissions
type CelestiaClient struct {
	Client    *client.Client
	Namespace share.Namespace // Your app's namespace ID
	Attempts  int
	log       *logrus.Logger
}

// ProofPayload is the blob published for a completed market proof.
type ProofPayload struct {
	RequestID       string        `json:"request_id"`
	MarketRequestID common.Hash   `json:"market_request_id"`
	Journal         hexutil.Bytes `json:"journal"`
	Seal            hexutil.Bytes `json:"seal"`
	AnchorTx        *common.Hash  `json:"anchor_tx,omitempty"`
}

func EncodeProof(requestID string, res *prover.MarketResult) ([]byte, error) {
	return json.Marshal(ProofPayload{
		RequestID:       requestID,
		MarketRequestID: res.RequestID,
		Journal:         res.Journal,
		Seal:            res.Seal,
		AnchorTx:        res.AnchorTx,
	})
}

// PublishProof posts a completed market proof to the DA layer.
func PublishProof(ctx context.Context, c DAClient, requestID string, res *prover.MarketResult) (*Publication, error) {
	data, err := EncodeProof(requestID, res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof payload: %w", err)
	}
	return c.SubmitToDA(ctx, data)
}

// Config selects and configures a DA layer.
type Config struct {
	Type      string
	NodeAddr  string
	AuthToken string
	Namespace string
	Attempts  int
}

// New returns the client for cfg.Type, or nil when publication is disabled.
func New(ctx context.Context, cfg Config, log *logrus.Logger) (DAClient, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case TypeCelestia:
		c, err := NewCelestiaClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case TypeAvail:
		c, err := NewAvailClient(cfg, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("invalid da type %q: must be 'avail' or 'celestia'", cfg.Type)
	}
}

// submitWithBackoff calls submit up to attempts times with exponential
// backoff, stopping early when ctx is done.
func submitWithBackoff(ctx context.Context, layer string, attempts int, log *logrus.Logger, submit func(context.Context) (*Publication, error)) (*Publication, error) {
	if attempts < 1 {
		attempts = defaultAttempts
	}
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pub, err := submit(ctx)
		if err == nil {
			return pub, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		log.Errorf("%s submission failed (attempt %d/%d): %v. Retrying in %s...", layer, attempt, attempts, err, backoff)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s submission abandoned: %w", layer, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("%s submission failed after %d attempts: %w", layer, attempts, lastErr)
}
