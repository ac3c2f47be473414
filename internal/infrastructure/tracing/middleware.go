package tracing

import (
	"context"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

// userKey mirrors the gin key the auth middleware stores the user id under
const userKey = "user_id"

// HTTPMiddleware opens a span per API request, named after the route
// pattern so page and block ids do not explode the operation set
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx := Continue(c.Request.Context(), c.GetHeader(TraceHeader), c.GetHeader(SpanHeader))
		span, ctx := tracer.Start(ctx, c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, string(span.TraceID))
		c.Header(SpanHeader, string(span.SpanID))

		c.Next()

		span.Attr("user", c.GetString(userKey))
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		span.End(c.Writer.Status(), err)
		tracer.Finish(span)
	}
}

// GRPCUnaryInterceptor opens a span per unary RPC
func GRPCUnaryInterceptor(tracer *Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = Continue(ctx, first(md, "x-trace-id"), first(md, "x-span-id"))

		span, ctx := tracer.Start(ctx, info.FullMethod)
		resp, err := handler(ctx, req)
		span.Attr("grpc.code", status.Code(err).String())

		code := 200
		if err != nil {
			code = 500
		}
		span.End(code, err)
		tracer.Finish(span)
		return resp, err
	}
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
