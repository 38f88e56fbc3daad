package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/airchains-network/zk-coprocessor/batch/da"
	"github.com/airchains-network/zk-coprocessor/internal/pool"
	"github.com/airchains-network/zk-coprocessor/orchestrator"
	"github.com/airchains-network/zk-coprocessor/state"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the orchestrator over HTTP. Proof requests are accepted
// synchronously and proven on the job pool.
type Server struct {
	orch     *orchestrator.Orchestrator
	tracker  *state.Tracker
	jobs     *pool.JobPool
	daClient da.DAClient
	log      *logrus.Logger
	upgrader websocket.Upgrader
	router   *gin.Engine
}

// NewServer builds the router. daClient may be nil to skip publication.
func NewServer(orch *orchestrator.Orchestrator, tracker *state.Tracker, jobs *pool.JobPool, daClient da.DAClient, log *logrus.Logger) *Server {
	s := &Server{
		orch:     orch,
		tracker:  tracker,
		jobs:     jobs,
		daClient: daClient,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[API] %s - %s %s %d\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
			)
		},
		SkipPaths: []string{"/health"},
	}))
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	v1 := router.Group("/v1")
	v1.POST("/proofs/exec", s.submitExec)
	v1.POST("/proofs/market", s.submitMarket)
	v1.GET("/proofs", s.listProofs)
	v1.GET("/proofs/:id", s.getProof)
	v1.GET("/ws", s.handleWebSocket)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
