package rpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/ruya/internal/core"
	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Generate stream event fields.
const (
	progressField = "progress"
	artifactField = "artifact"
)

type Server struct {
	address string
	svc     core.Service
	logger  logging.Logger
}

func NewServer(address string, svc core.Service, l logging.Logger) *Server {
	return &Server{
		address: address,
		svc:     svc,
		logger:  l.With("module", "grpc_server"),
	}
}

func (s *Server) service() core.Service { return s.svc }

// NewGRPCServer returns a grpc.Server with the control API and the logging
// interceptors registered.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor),
	)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

// Run serves on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewGRPCServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) balance(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	b, err := s.svc.Balance(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(b)
}

func (s *Server) packages(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	offers, err := s.svc.Packages(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return listStruct(offers)
}

func (s *Server) purchase(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	b, err := s.svc.Purchase(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(b)
}

func (s *Server) restore(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.svc.Restore(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *Server) history(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	items, err := s.svc.History(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return listStruct(items)
}

func (s *Server) delete(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.svc.Delete(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) offlineLogs(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.Struct, error) {
	items, err := s.svc.OfflineLogs(ctx, int(in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return listStruct(items)
}

func (s *Server) interpret(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	interp, err := s.svc.Interpret(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(interp)
}

// generate streams one event per progress update, then the artifact.
// Cancelling the call cancels the generation, which refunds its debit.
func (s *Server) generate(in *wrapperspb.StringValue, stream grpc.ServerStream) error {
	ctx := stream.Context()

	var sendErr error
	onProgress := func(p models.GenerationProgress) {
		if sendErr != nil {
			return
		}
		ev, err := toStruct(map[string]any{progressField: p})
		if err == nil {
			err = stream.SendMsg(ev)
		}
		if err != nil {
			sendErr = err
			s.logger.Warn(ctx, "progress not delivered", "error", err)
		}
	}

	a, err := s.svc.Generate(ctx, in.GetValue(), onProgress)
	if err != nil {
		return toStatus(err)
	}

	ev, err := toStruct(map[string]any{artifactField: a})
	if err != nil {
		return toStatus(err)
	}
	return stream.SendMsg(ev)
}
