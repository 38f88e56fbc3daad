package da

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	SDK "github.com/availproject/avail-go-sdk/sdk"
	"github.com/sirupsen/logrus"
)

const defaultAvailAppID uint32 = 36

// NewAvailClient initializes an Avail DA client. AuthToken holds the signing
// seed and Namespace the numeric AppID.
func NewAvailClient(cfg Config, log *logrus.Logger) (*AvailClient, error) {
	acc, err := SDK.Account.NewKeyPair(cfg.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %v", err)
	}
	log.Infof("Created Avail account with address: %s", acc.SS58Address(42))

	sdk, err := SDK.NewSDK(cfg.NodeAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Avail SDK: %v", err)
	}

	appID, err := parseAppID(cfg.Namespace)
	if err != nil {
		return nil, err
	}
	log.Infof("Initialized Avail client for node %s with AppID %d", cfg.NodeAddr, appID)

	return &AvailClient{
		Client:    sdk,
		Namespace: appID,
		Account:   acc,
		Attempts:  cfg.Attempts,
		log:       log,
	}, nil
}

func parseAppID(namespace string) (uint32, error) {
	if namespace == "" {
		return defaultAvailAppID, nil
	}
	id, err := strconv.ParseUint(namespace, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid Avail AppID %q: %w", namespace, err)
	}
	return uint32(id), nil
}

func (c *AvailClient) Name() string { return TypeAvail }

// SubmitToDA submits data to Avail and waits for inclusion. The SDK call
// itself is not cancellable; ctx bounds the retries.
func (c *AvailClient) SubmitToDA(ctx context.Context, data []byte) (*Publication, error) {
	hash := sha256.Sum256(data)
	commitment := hex.EncodeToString(hash[:])

	return submitWithBackoff(ctx, "Avail", c.Attempts, c.log, func(context.Context) (*Publication, error) {
		tx := c.Client.Tx.DataAvailability.SubmitData(data)
		res, err := tx.ExecuteAndWatchInclusion(c.Account, SDK.NewTransactionOptions().WithAppId(c.Namespace))
		if err != nil {
			return nil, fmt.Errorf("avail transaction failed: %w", err)
		}
		if !res.IsSuccessful().UnsafeUnwrap() {
			return nil, errors.New("avail transaction was not successful")
		}

		c.log.Infof("Successfully submitted to Avail! Tx Hash: %s, Block Hash: %s, Block Number: %d, Tx Index: %d",
			res.TxHash.ToHexWith0x(), res.BlockHash.ToHexWith0x(), res.BlockNumber, res.TxIndex)

		return &Publication{
			Layer:      TypeAvail,
			Height:     uint64(res.BlockNumber),
			TxHash:     res.TxHash.ToHexWith0x(),
			Commitment: commitment,
		}, nil
	})
}
