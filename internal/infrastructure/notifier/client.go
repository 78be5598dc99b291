package notifier

import (
	"context"
	"fmt"

	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Whoagir/Afisha/internal/domain/notification"
)

// 再試行しても結果が変わらないステータスコード
var permanentCodes = map[codes.Code]bool{
	codes.InvalidArgument:    true,
	codes.NotFound:           true,
	codes.PermissionDenied:   true,
	codes.Unauthenticated:    true,
	codes.FailedPrecondition: true,
	codes.Unimplemented:      true,
}

// GRPCTransport は gRPC の配送サービスを呼び出す notification.Transport
type GRPCTransport struct {
	conn *grpc.ClientConn
}

var _ notification.Transport = (*GRPCTransport)(nil)

// Dial は配送サービスへの接続を作成する
func Dial(addr string, logger *zap.Logger, opts ...grpc.DialOption) (*GRPCTransport, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			grpc_prometheus.UnaryClientInterceptor,
			grpc_zap.UnaryClientInterceptor(logger),
		),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("配送サービスへの接続に失敗: %w", err)
	}
	return &GRPCTransport{conn: conn}, nil
}

// Send は通知を配送サービスに渡す。タイムアウトは呼び出し側の ctx で制御する
func (t *GRPCTransport) Send(ctx context.Context, msg notification.Message) error {
	req, err := encodeMessage(msg)
	if err != nil {
		return fmt.Errorf("%v: %w", err, notification.ErrPermanentDelivery)
	}

	resp := new(structpb.Struct)
	if err := t.conn.Invoke(ctx, sendMethod, req, resp); err != nil {
		return classify(err)
	}

	res := decodeResult(resp)
	if res.Accepted {
		return nil
	}
	if res.Permanent {
		return fmt.Errorf("配送サービスが拒否しました (%s): %w", res.Message, notification.ErrPermanentDelivery)
	}
	return fmt.Errorf("配送サービスが受理しませんでした (%s): %w", res.Message, notification.ErrTransientDelivery)
}

func classify(err error) error {
	code := status.Code(err)
	if permanentCodes[code] {
		return fmt.Errorf("%s: %w", code, notification.ErrPermanentDelivery)
	}
	return fmt.Errorf("%s: %v: %w", code, status.Convert(err).Message(), notification.ErrTransientDelivery)
}

func (t *GRPCTransport) Close() error {
	return t.conn.Close()
}
