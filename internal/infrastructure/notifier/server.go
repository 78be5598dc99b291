package notifier

import (
	"context"

	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Whoagir/Afisha/internal/domain/notification"
)

// Handler は受け取った通知を処理する
type Handler func(ctx context.Context, msg notification.Message) SendResult

// Server は配送サービスの gRPC 実装。ローカル開発と結合テストで使う
type Server struct {
	handler Handler
}

func NewServer(handler Handler) *Server {
	return &Server{handler: handler}
}

// LogHandler は通知をログに出して受理する
func LogHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, msg notification.Message) SendResult {
		logger.Info("通知を受信",
			zap.String("kind", string(msg.Kind)),
			zap.String("recipient", msg.RecipientAddress),
			zap.String("event_id", msg.EventID),
			zap.String("booking_id", msg.BookingID),
			zap.Any("params", msg.TemplateParameters),
		)
		return SendResult{Accepted: true, Message: "queued"}
	}
}

func (s *Server) send(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	msg := decodeMessage(req)
	if msg.RecipientAddress == "" {
		return nil, status.Error(codes.InvalidArgument, "recipient_address is required")
	}
	return encodeResult(s.handler(ctx, msg)), nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: sendMethodName,
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				s := srv.(*Server)
				if interceptor == nil {
					return s.send(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMethod}
				return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
					return s.send(ctx, req.(*structpb.Struct))
				})
			},
		},
	},
	Streams: []grpc.StreamDesc{},
}

// Register は gRPC サーバーにサービスを登録する
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// NewGRPCServer はログ・メトリクス・リカバリのインターセプター付きサーバーを作成する
func NewGRPCServer(logger *zap.Logger, srv *Server) *grpc.Server {
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(),
			grpc_prometheus.UnaryServerInterceptor,
			grpc_zap.UnaryServerInterceptor(logger),
		),
	)
	srv.Register(g)
	grpc_prometheus.Register(g)
	return g
}
