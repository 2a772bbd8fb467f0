package denoiser

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"

	"github.com/banshee-data/terrain.diffusion/internal/diffusion"
	"github.com/banshee-data/terrain.diffusion/internal/monitoring"
)

// maxMsgSize covers a 512×512 batch of four with room to spare. The gRPC
// default of 4 MB is too small for full-resolution tiles.
const maxMsgSize = 32 * 1024 * 1024

// ServerConfig holds server settings.
type ServerConfig struct {
	ListenAddr string
	Model      string
}

// Server hosts a Denoiser as a gRPC service.
type Server struct {
	config   ServerConfig
	handler  *Handler
	listener net.Listener
	server   *grpc.Server
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a server for d. Call Start to begin serving.
func NewServer(cfg ServerConfig, d diffusion.Denoiser) *Server {
	return &Server{
		config:  cfg,
		handler: &Handler{Denoiser: d, Model: cfg.Model},
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(lis net.Listener) error {
	if s.running.Load() {
		return fmt.Errorf("denoiser server already running")
	}
	s.listener = lis
	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterService(s.server, s.handler)
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		monitoring.Logf("[denoiser] serving model %q on %s", s.config.Model, lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			monitoring.Logf("[denoiser] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the server and waits for in-flight calls.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.server.GracefulStop()
	s.wg.Wait()
	monitoring.Logf("[denoiser] server stopped")
}
