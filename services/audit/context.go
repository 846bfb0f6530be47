package audit

import (
	"context"

	"github.com/upb/authcore/models"
)

type requestMetaKey struct{}

// WithRequestMeta stores transport metadata for audit entries created
// further down the call chain.
func WithRequestMeta(ctx context.Context, meta models.RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the stored metadata, or the zero value.
func RequestMetaFromContext(ctx context.Context) models.RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(models.RequestMeta)
	return meta
}
