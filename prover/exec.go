package prover

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ptypes "github.com/airchains-network/zk-coprocessor/prover/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const execBackendName = "exec"

// ExecClient runs the guest program on an executor without producing a
// seal. It is used for correctness checks and cost estimation.
type ExecClient struct {
	client  *Client
	imageID common.Hash
	log     *logrus.Logger
}

var _ Backend = (*ExecClient)(nil)

func NewExecClient(endpoint string, imageID common.Hash, timeout time.Duration, log *logrus.Logger) *ExecClient {
	c := NewClient(endpoint, timeout, log)
	return &ExecClient{client: c, imageID: imageID, log: c.log}
}

func (e *ExecClient) Name() string { return execBackendName }

// Prove executes the whole obligation sequence in a single session.
func (e *ExecClient) Prove(ctx context.Context, req *ProveRequest) (Result, error) {
	input, err := encodeGuestInput(req)
	if err != nil {
		return nil, &ProofError{Backend: execBackendName, Err: err}
	}

	var resp ptypes.ExecuteResponse
	err = e.client.call(ctx, http.MethodPost, "/v1/execute", ptypes.ExecuteRequest{
		ImageID: e.imageID,
		Input:   input,
	}, &resp)
	if err != nil {
		return nil, &ProofError{Backend: execBackendName, Err: err}
	}
	if !resp.Success {
		return nil, &ProofError{
			Backend: execBackendName,
			Err:     fmt.Errorf("%w: %s %s", ErrBackendSubmission, resp.Message, resp.Description),
		}
	}
	if len(resp.Journal) == 0 {
		return nil, &ProofError{Backend: execBackendName, Err: fmt.Errorf("%w: empty journal", ErrMalformedResponse)}
	}

	cycles := make([]uint32, len(resp.Segments))
	for i, s := range resp.Segments {
		cycles[i] = s.Cycles
	}
	result := &ExecResult{Journal: resp.Journal, SegmentCycles: cycles}
	e.log.Infof("Executed %d obligations in %d segments, %d cycles", len(req.Obligations), len(cycles), result.TotalCycles())
	return result, nil
}
