package da

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	client "github.com/celestiaorg/celestia-openrpc"
	"github.com/celestiaorg/celestia-openrpc/types/blob"
	"github.com/celestiaorg/celestia-openrpc/types/share"
	"github.com/sirupsen/logrus"
)

const celestiaSubmitTimeout = 60 * time.Second

// NewCelestiaClient initializes a Celestia client
func NewCelestiaClient(ctx context.Context, cfg Config, log *logrus.Logger) (*CelestiaClient, error) {
	celestiaClient, err := client.NewClient(ctx, cfg.NodeAddr, cfg.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Celestia client: %v", err)
	}
	ns, err := share.NewBlobNamespaceV0([]byte(cfg.Namespace))
	if err != nil {
		celestiaClient.Close()
		return nil, fmt.Errorf("failed to create namespace: %v", err)
	}

	log.Infof("Initialized Celestia client for node %s with namespace %s", cfg.NodeAddr, ns)

	return &CelestiaClient{
		Client:    celestiaClient,
		Namespace: ns,
		Attempts:  cfg.Attempts,
		log:       log,
	}, nil
}

func (c *CelestiaClient) Name() string { return TypeCelestia }

// Close closes the Celestia client connection
func (c *CelestiaClient) Close() {
	c.Client.Close()
}

// SubmitToDA submits data to Celestia as a single blob
func (c *CelestiaClient) SubmitToDA(ctx context.Context, data []byte) (*Publication, error) {
	blobData, err := blob.NewBlobV0(c.Namespace, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Celestia blob: %v", err)
	}
	commitment := hex.EncodeToString(blobData.Commitment)

	return submitWithBackoff(ctx, "Celestia", c.Attempts, c.log, func(ctx context.Context) (*Publication, error) {
		ctx, cancel := context.WithTimeout(ctx, celestiaSubmitTimeout)
		defer cancel()

		height, err := c.Client.Blob.Submit(ctx, []*blob.Blob{blobData}, blob.NewSubmitOptions())
		if err != nil {
			return nil, err
		}
		c.log.Infof("Successfully submitted to Celestia at height %d, commitment: %s", height, commitment)
		return &Publication{Layer: TypeCelestia, Height: height, Commitment: commitment}, nil
	})
}
