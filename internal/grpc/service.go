package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

const serviceName = "rapidresponse.v1.RunService"

type RunRequest struct {
	ID string `json:"id"`
}

type SubmitResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

// WatchMessage carries either the snapshot sent on subscribe or a run event.
type WatchMessage struct {
	Snapshot *models.RunView `json:"snapshot,omitempty"`
	Event    *models.Event   `json:"event,omitempty"`
}

type runServiceServer interface {
	GetRun(ctx context.Context, req *RunRequest) (*models.RunView, error)
	SubmitRun(ctx context.Context, req *RunRequest) (*SubmitResponse, error)
	WatchRun(req *RunRequest, stream grpc.ServerStream) error
}

var runServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*runServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRun", Handler: getRunHandler},
		{MethodName: "SubmitRun", Handler: submitRunHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchRun", Handler: watchRunHandler, ServerStreams: true},
	},
}

func getRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(runServiceServer).GetRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetRun"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(runServiceServer).GetRun(ctx, req.(*RunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func submitRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(runServiceServer).SubmitRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SubmitRun"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(runServiceServer).SubmitRun(ctx, req.(*RunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func watchRunHandler(srv any, stream grpc.ServerStream) error {
	in := new(RunRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(runServiceServer).WatchRun(in, stream)
}
