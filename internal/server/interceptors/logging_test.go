package interceptors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingUnary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	interceptor := LoggingUnary(zap.New(core), map[string]bool{"/skip/Me": true})

	ok := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	fail := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unauthenticated, "no")
	}

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Ok"}, ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Fail"}, fail)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/skip/Me"}, ok)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/svc/Ok", entries[0].ContextMap()["method"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "Unauthenticated", entries[1].ContextMap()["code"])
}

func TestLoggingUnary_PassesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	interceptor := LoggingUnary(zap.NewNop(), nil)
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/X"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}
