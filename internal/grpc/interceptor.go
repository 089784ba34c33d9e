package grpc

import (
	"context"
	"time"

	"github.com/bookstore/services/books/internal/requestid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// requestIDKey is the metadata key carrying the request id; gRPC lowercases keys.
const requestIDKey = "x-request-id"

// LoggingInterceptor logs all gRPC requests and attaches a request id to the context.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(requestIDKey); len(values) > 0 {
				id = values[0]
			}
		}
		if id == "" {
			id = requestid.New()
		}
		ctx = requestid.NewContext(ctx, id)

		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("request_id", id),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Error("gRPC request failed", append(fields, zap.Error(err))...)
		} else {
			log.Info("gRPC request completed", fields...)
		}

		return resp, err
	}
}
