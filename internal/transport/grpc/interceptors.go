package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cwrk-planet/chat-service/pkg/logger"
)

const requestIDKey = "x-request-id"

type ctxKey int

const ctxKeyReqID ctxKey = iota

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyReqID).(string)
	return v, ok
}

func requestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if vals := md.Get(requestIDKey); len(vals) > 0 && vals[0] != "" {
			ctx = context.WithValue(ctx, ctxKeyReqID, vals[0])
		}
		return handler(ctx, req)
	}
}

// unaryInterceptor logs, recovers panics and guards calls without a deadline.
func unaryInterceptor(log *slog.Logger, guard time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		ctx, span := logger.Tracer("chat-service/grpc").Start(ctx, info.FullMethod)
		defer span.End()

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, guard)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc unary panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}

			reqID, _ := RequestIDFromContext(ctx)
			attrs := append(logger.AttrsFromCtx(ctx),
				slog.String("method", info.FullMethod),
				slog.String("req_id", reqID),
				slog.String("code", status.Code(err).String()),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
			)
			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
				attrs = append(attrs, logger.Err(err))
			}
			log.LogAttrs(ctx, level, "grpc unary", attrs...)
		}()

		return handler(ctx, req)
	}
}

func streamInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc stream panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			log.Info("grpc stream",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"code", status.Code(err).String())
		}()

		return handler(srv, ss)
	}
}
