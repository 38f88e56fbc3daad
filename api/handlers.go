package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/airchains-network/zk-coprocessor/batch"
	"github.com/airchains-network/zk-coprocessor/batch/da"
	"github.com/airchains-network/zk-coprocessor/internal/pool"
	"github.com/airchains-network/zk-coprocessor/orchestrator"
	"github.com/airchains-network/zk-coprocessor/state"
	"github.com/airchains-network/zk-coprocessor/types"
	"github.com/gin-gonic/gin"
)

// MarketProofRequest is a batch plus the submission channel.
type MarketProofRequest struct {
	types.ProofBatchRequest
	Onchain bool `json:"onchain"`
}

type AcceptedResponse struct {
	ID          string `json:"id"`
	Obligations int    `json:"obligations"`
}

// ErrorResponse carries the id of a request that was recorded but could not
// be queued.
type ErrorResponse struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) submitExec(c *gin.Context) {
	var req types.ProofBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	s.accept(c, req, false, false, func(ctx context.Context, id string) {
		s.orch.ExecuteLocalWithID(ctx, id, req)
	})
}

func (s *Server) submitMarket(c *gin.Context) {
	var req MarketProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	s.accept(c, req.ProofBatchRequest, true, req.Onchain, func(ctx context.Context, id string) {
		res, err := s.orch.ExecuteMarketWithID(ctx, id, req.ProofBatchRequest, req.Onchain)
		if err != nil || s.daClient == nil {
			return
		}
		pub, err := da.PublishProof(ctx, s.daClient, id, res)
		if err != nil {
			s.log.Errorf("Failed to publish proof %s to %s: %v", id, s.daClient.Name(), err)
			return
		}
		if err := s.tracker.SetPublication(id, pub.String()); err != nil {
			s.log.Warnf("Failed to record publication of %s: %v", id, err)
		}
	})
}

// accept validates up front so callers get a 400 instead of a failed record,
// then records the request and queues the proving work. The id is answerable
// from the moment it is returned.
func (s *Server) accept(c *gin.Context, req types.ProofBatchRequest, market, onchain bool, run func(ctx context.Context, id string)) {
	if err := batch.Validate(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	id := orchestrator.NewRequestID()
	s.orch.Accept(id, market, onchain)
	err := s.jobs.Submit(pool.Job{
		ID:  id,
		Run: func(ctx context.Context) { run(ctx, id) },
	})
	if err != nil {
		// queue full or shutting down
		s.orch.Abandon(id, err)
		s.log.Warnf("Could not queue request %s: %v", id, err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{ID: id, Error: err.Error()})
		return
	}

	s.log.Infof("Accepted request %s with %d obligations", id, batch.Count(req))
	c.JSON(http.StatusAccepted, AcceptedResponse{ID: id, Obligations: batch.Count(req)})
}

func (s *Server) getProof(c *gin.Context) {
	rec, err := s.tracker.Get(c.Param("id"))
	if errors.Is(err, state.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) listProofs(c *gin.Context) {
	records, err := s.tracker.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if records == nil {
		records = []*state.Record{}
	}
	c.JSON(http.StatusOK, records)
}
