package signing

import (
	"context"

	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// ErrNotEntitled is returned by placement operations while the entitlement
// gate is closed
var ErrNotEntitled = errors.New(errors.ErrorTypeNotEntitled, "signing requires an active subscription")

// Entitlement decides whether the signing features are available
type Entitlement interface {
	IsEntitled(ctx context.Context) bool
}

// StaticEntitlement is a fixed gate
type StaticEntitlement bool

// IsEntitled implements Entitlement
func (e StaticEntitlement) IsEntitled(context.Context) bool { return bool(e) }

// EntitlementFunc adapts a function to the Entitlement interface
type EntitlementFunc func(ctx context.Context) bool

// IsEntitled calls f(ctx)
func (f EntitlementFunc) IsEntitled(ctx context.Context) bool { return f(ctx) }
