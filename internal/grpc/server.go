package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/notify"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/orchestrator"
)

// Runs is the part of the orchestrator the gRPC service exposes.
type Runs interface {
	Status(id string) (models.RunView, error)
	Submit(id string) error
}

type Server struct {
	runs        Runs
	broadcaster *notify.Broadcaster
	health      *health.Server
	grpcServer  *grpc.Server
}

func NewServer(runs Runs, broadcaster *notify.Broadcaster) *Server {
	s := &Server{
		runs:        runs,
		broadcaster: broadcaster,
		health:      health.NewServer(),
		grpcServer:  grpc.NewServer(),
	}
	s.grpcServer.RegisterService(&runServiceDesc, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// Stop marks the service as not serving and waits for open calls. Close the
// broadcaster first so WatchRun streams end.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func (s *Server) GetRun(ctx context.Context, req *RunRequest) (*models.RunView, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	v, err := s.runs.Status(req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &v, nil
}

func (s *Server) SubmitRun(ctx context.Context, req *RunRequest) (*SubmitResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	if err := s.runs.Submit(req.ID); err != nil {
		return nil, toStatus(err)
	}
	slog.Info("run submitted over gRPC", "run_id", req.ID)
	return &SubmitResponse{ID: req.ID, Accepted: true}, nil
}

// WatchRun sends the run's current snapshot, then its events until the run
// finishes or the client goes away.
func (s *Server) WatchRun(req *RunRequest, stream grpc.ServerStream) error {
	if req.ID == "" {
		return status.Error(codes.InvalidArgument, "id is required")
	}
	if _, err := s.runs.Status(req.ID); err != nil {
		return toStatus(err)
	}

	id, ch := s.broadcaster.Subscribe(req.ID)
	defer s.broadcaster.Unsubscribe(req.ID, id)
	slog.Info("client subscribed to run stream", "run_id", req.ID, "subscriber_id", id)

	view, err := s.runs.Status(req.ID)
	if err != nil {
		return toStatus(err)
	}
	if err := stream.SendMsg(&WatchMessage{Snapshot: &view}); err != nil {
		return err
	}
	if view.Status.Terminal() {
		return nil
	}

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from run stream", "run_id", req.ID, "subscriber_id", id)
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(&WatchMessage{Event: &ev}); err != nil {
				slog.Error("failed to send event to stream", "error", err, "subscriber_id", id)
				return err
			}
			if ev.Terminal() {
				return nil
			}
		}
	}
}

func toStatus(err error) error {
	switch models.KindOf(err) {
	case models.ErrNotFound:
		return status.Error(codes.NotFound, err.Error())
	case models.ErrInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case models.ErrConflictingOperation:
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, orchestrator.ErrNotStarted):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Errorf(codes.Internal, "run service: %v", err)
}
