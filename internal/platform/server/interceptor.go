package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryLoggingInterceptor は各呼び出しのメソッド、ステータスコード、所要時間を記録します。
// Internal と Unknown は error、それ以外の失敗は warn で出力します。
func UnaryLoggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		var entry *zerolog.Event
		switch code {
		case codes.OK:
			entry = log.Info()
		case codes.Internal, codes.Unknown:
			entry = log.Error().Err(err)
		default:
			entry = log.Warn().Err(err)
		}
		entry.
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(started)).
			Msg("grpc call")

		return resp, err
	}
}
