package interceptors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Dhoini/saas-platform/pkg/logger"
)

func TestUnaryRecoversPanic(t *testing.T) {
	interceptor := NewLoggingInterceptor(logger.NewNop()).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Boom"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestUnaryPassesThrough(t *testing.T) {
	interceptor := NewLoggingInterceptor(logger.NewNop()).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Echo"}

	resp, err := interceptor(context.Background(), "ping", info, func(_ context.Context, req interface{}) (interface{}, error) {
		return req, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ping", resp)

	_, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "missing")
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
