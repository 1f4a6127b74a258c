// Package hooks implements the observation and interception pipeline that runs
// around every gateway operation: global and per-operation before/after hooks,
// error observers and webhook lifecycle observers.
package hooks

import (
	"context"
	"time"
)

// Operation identifies the gateway operation a hook fires around.
type Operation string

const (
	OpCreatePayment         Operation = "create_payment"
	OpCapturePayment        Operation = "capture_payment"
	OpRefundPayment         Operation = "refund_payment"
	OpVoidPayment           Operation = "void_payment"
	OpGetPayment            Operation = "get_payment"
	OpCreateCheckoutSession Operation = "create_checkout_session"
	OpVerifyWebhook         Operation = "verify_webhook"
)

// Context carries the operation metadata handed to every hook. Params holds the
// operation's parameter struct; before-hooks may replace it via BeforeResult.
type Context struct {
	Gateway   string
	Operation Operation
	Params    any
	Timestamp time.Time
	Metadata  map[string]any
}

// BeforeResult is returned by a before-hook. Proceed=false aborts the operation
// with AbortReason. A non-nil Params replaces the operation parameters for the
// remaining hooks and the gateway call.
type BeforeResult struct {
	Proceed     bool
	Params      any
	AbortReason string
}

// Continue is the no-op before-hook result.
func Continue() *BeforeResult { return &BeforeResult{Proceed: true} }

// Abort stops the operation before it reaches the provider.
func Abort(reason string) *BeforeResult { return &BeforeResult{AbortReason: reason} }

// Rewrite continues with replaced operation parameters.
func Rewrite(params any) *BeforeResult { return &BeforeResult{Proceed: true, Params: params} }

// AfterResult is returned by an after-hook. Proceed=false aborts delivery of
// the result. A non-nil Result replaces the operation result.
type AfterResult struct {
	Proceed bool
	Result  any
}

// BeforeHook runs before the gateway call.
// A nil result is treated as Continue.
type BeforeHook func(ctx context.Context, hctx *Context) (*BeforeResult, error)

// AfterHook runs after a successful gateway call with its result.
// A nil result is treated as proceed-unchanged.
type AfterHook func(ctx context.Context, hctx *Context, result any) (*AfterResult, error)

// ErrorHook observes a failed operation. It cannot swallow the error.
type ErrorHook func(ctx context.Context, hctx *Context, err error)

// WebhookReceivedHook observes a raw webhook before verification.
type WebhookReceivedHook func(ctx context.Context, gateway string, payload []byte)

// WebhookVerifiedHook observes a verified and parsed webhook event.
type WebhookVerifiedHook func(ctx context.Context, gateway string, event any)

// WebhookFailedHook observes a webhook that failed verification.
type WebhookFailedHook func(ctx context.Context, gateway string, err error)

// Hooks is the declarative hook set accepted at client construction. Global
// slots run for every operation; the per-operation slots exist only for the
// three money-moving operations.
type Hooks struct {
	BeforePayment []BeforeHook
	AfterPayment  []AfterHook
	OnError       []ErrorHook

	BeforeCreatePayment  []BeforeHook
	AfterCreatePayment   []AfterHook
	BeforeCapturePayment []BeforeHook
	AfterCapturePayment  []AfterHook
	BeforeRefundPayment  []BeforeHook
	AfterRefundPayment   []AfterHook

	OnWebhookReceived []WebhookReceivedHook
	OnWebhookVerified []WebhookVerifiedHook
	OnWebhookFailed   []WebhookFailedHook
}
