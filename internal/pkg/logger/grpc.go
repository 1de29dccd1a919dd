package logger

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor logs unary calls, skipping the listed full method names
func UnaryServerInterceptor(logger *Logger, skipMethods ...string) grpc.UnaryServerInterceptor {
	skip := toSet(skipMethods)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if skip[info.FullMethod] {
			return handler(ctx, req)
		}

		ctx = WithRequestID(ctx, requestIDFromMetadata(ctx))
		start := time.Now()

		resp, err := handler(ctx, req)

		logCall(logger.WithContext(ctx), "gRPC call", info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor logs streaming calls such as Health/Watch
func StreamServerInterceptor(logger *Logger, skipMethods ...string) grpc.StreamServerInterceptor {
	skip := toSet(skipMethods)

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if skip[info.FullMethod] {
			return handler(srv, ss)
		}

		ctx := WithRequestID(ss.Context(), requestIDFromMetadata(ss.Context()))
		start := time.Now()

		err := handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})

		logCall(logger.WithContext(ctx), "gRPC stream", info.FullMethod, start, err)
		return err
	}
}

func logCall(log *Logger, msg, method string, start time.Time, err error) {
	st, _ := status.FromError(err)
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("service", path.Dir(method)[1:]),
		zap.String("rpc", path.Base(method)),
		zap.Duration("latency", time.Since(start)),
		zap.String("code", st.Code().String()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	switch st.Code() {
	case codes.OK:
		log.Info(msg, fields...)
	case codes.Canceled, codes.DeadlineExceeded, codes.NotFound:
		log.Warn(msg, fields...)
	default:
		log.Error(msg, fields...)
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("x-request-id"); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.New().String()
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
