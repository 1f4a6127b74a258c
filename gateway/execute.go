package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paymux/hooks"
	"paymux/payerr"
)

// Runtime bundles what the Execute pipeline needs from an adapter. Adapters
// embed one by value; there is no shared base type beyond it.
type Runtime struct {
	// Gateway is the adapter's registry name.
	Gateway string
	// Hooks is the shared hook manager. Nil disables the hook pipeline.
	Hooks *hooks.Manager
	// MapError translates provider failures into taxonomy errors. It must
	// pass *payerr.Error values through unchanged. Nil means identity.
	MapError func(err error) error
	// Logger is never nil after NewRuntime.
	Logger *zap.Logger
}

// NewRuntime builds a Runtime, defaulting the logger to a nop logger.
func NewRuntime(name string, mgr *hooks.Manager, mapError func(error) error, logger *zap.Logger) Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Runtime{Gateway: name, Hooks: mgr, MapError: mapError, Logger: logger}
}

// Execute runs one gateway operation through the shared pipeline: validate
// the params, run before-hooks (which may rewrite the params or abort), call
// exec, run after-hooks (which may rewrite the result or abort). Any failure
// goes through the adapter's MapError and the error observers before being
// returned.
func Execute[P any, R any](ctx context.Context, rt *Runtime, op hooks.Operation, params P, exec func(ctx context.Context, params P) (R, error)) (R, error) {
	var zero R
	hctx := &hooks.Context{
		Gateway:   rt.Gateway,
		Operation: op,
		Params:    params,
		Timestamp: time.Now(),
		Metadata:  map[string]any{},
	}

	out, err := func() (R, error) {
		if err := ValidateParams(params); err != nil {
			return zero, err
		}
		effective := params
		if rt.Hooks != nil {
			res, err := rt.Hooks.RunBefore(ctx, hctx)
			if err != nil {
				return zero, err
			}
			if !res.Proceed {
				return zero, payerr.Aborted(res.AbortReason)
			}
			if p, ok := hctx.Params.(P); ok {
				effective = p
			}
		}
		result, err := exec(ctx, effective)
		if err != nil {
			return zero, err
		}
		if rt.Hooks != nil {
			res, err := rt.Hooks.RunAfter(ctx, hctx, result)
			if err != nil {
				return zero, err
			}
			if !res.Proceed {
				return zero, payerr.Aborted("result rejected by after-hook")
			}
			if r, ok := res.Result.(R); ok {
				result = r
			}
		}
		return result, nil
	}()

	if err != nil {
		mapped := err
		if rt.MapError != nil {
			if m := rt.MapError(err); m != nil {
				mapped = m
			}
		}
		rt.Logger.Debug("gateway operation failed",
			zap.String("gateway", rt.Gateway),
			zap.String("operation", string(op)),
			zap.Error(mapped))
		if rt.Hooks != nil {
			rt.Hooks.RunError(ctx, hctx, mapped)
		}
		return zero, mapped
	}
	return out, nil
}
