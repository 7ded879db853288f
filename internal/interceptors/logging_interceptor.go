package interceptors

import (
	"context"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

// LoggingInterceptor логирует gRPC вызовы и перехватывает паники
type LoggingInterceptor struct {
	log *logger.Logger
}

func NewLoggingInterceptor(log *logger.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{log: log}
}

// Unary возвращает UnaryServerInterceptor
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				i.log.Errorw("gRPC handler panicked", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Errorf(codes.Internal, "internal error")
			}

			code := status.Code(err)
			fields := []interface{}{
				"method", info.FullMethod,
				"code", code.String(),
				"latency_ms", time.Since(start).Milliseconds(),
			}
			if code == codes.OK {
				i.log.Debugw("gRPC call handled", fields...)
			} else {
				i.log.Warnw("gRPC call failed", append(fields, "error", err)...)
			}
		}()

		return handler(ctx, req)
	}
}
