package hooks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymux/hooks"
)

func hctx(op hooks.Operation) *hooks.Context {
	return &hooks.Context{
		Gateway:   "moyasar",
		Operation: op,
		Timestamp: time.Now(),
	}
}

func record(calls *[]string, name string) hooks.BeforeHook {
	return func(ctx context.Context, hctx *hooks.Context) (*hooks.BeforeResult, error) {
		*calls = append(*calls, name)
		return hooks.Continue(), nil
	}
}

func TestRunBeforeOrderGlobalThenSpecific(t *testing.T) {
	var calls []string
	m := hooks.NewManager(&hooks.Hooks{
		BeforePayment:       []hooks.BeforeHook{record(&calls, "global1"), record(&calls, "global2")},
		BeforeCreatePayment: []hooks.BeforeHook{record(&calls, "create")},
	})

	res, err := m.RunBefore(context.Background(), hctx(hooks.OpCreatePayment))
	require.NoError(t, err)
	assert.True(t, res.Proceed)
	assert.Equal(t, []string{"global1", "global2", "create"}, calls)
}

func TestRunBeforeSpecificSlotIgnoredForOtherOps(t *testing.T) {
	var calls []string
	m := hooks.NewManager(&hooks.Hooks{
		BeforeCreatePayment: []hooks.BeforeHook{record(&calls, "create")},
	})

	_, err := m.RunBefore(context.Background(), hctx(hooks.OpRefundPayment))
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestRunBeforeAbortStopsChain(t *testing.T) {
	var calls []string
	m := hooks.NewManager(&hooks.Hooks{
		BeforePayment: []hooks.BeforeHook{
			func(ctx context.Context, hctx *hooks.Context) (*hooks.BeforeResult, error) {
				return hooks.Abort("over limit"), nil
			},
			record(&calls, "never"),
		},
	})

	res, err := m.RunBefore(context.Background(), hctx(hooks.OpCreatePayment))
	require.NoError(t, err)
	assert.False(t, res.Proceed)
	assert.Equal(t, "over limit", res.AbortReason)
	assert.Empty(t, calls)
}

func TestRunBeforeNilResultContinues(t *testing.T) {
	var calls []string
	m := hooks.NewManager(&hooks.Hooks{
		BeforePayment: []hooks.BeforeHook{
			func(ctx context.Context, hctx *hooks.Context) (*hooks.BeforeResult, error) {
				return nil, nil
			},
			record(&calls, "after-nil"),
		},
	})

	res, err := m.RunBefore(context.Background(), hctx(hooks.OpCreatePayment))
	require.NoError(t, err)
	assert.True(t, res.Proceed)
	assert.Equal(t, []string{"after-nil"}, calls)
}

func TestRunBeforeRewriteThreadsParams(t *testing.T) {
	m := hooks.NewManager(&hooks.Hooks{
		BeforePayment: []hooks.BeforeHook{
			func(ctx context.Context, hctx *hooks.Context) (*hooks.BeforeResult, error) {
				return hooks.Rewrite("rewritten"), nil
			},
			func(ctx context.Context, hctx *hooks.Context) (*hooks.BeforeResult, error) {
				// The second hook must see the first hook's rewrite.
				assert.Equal(t, "rewritten", hctx.Params)
				return nil, nil
			},
		},
	})

	ctx := hctx(hooks.OpCreatePayment)
	ctx.Params = "original"
	res, err := m.RunBefore(context.Background(), ctx)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", res.Params)
}

func TestRunBeforeHookErrorPropagates(t *testing.T) {
	boom := errors.New("hook exploded")
	m := hooks.NewManager(&hooks.Hooks{
		BeforePayment: []hooks.BeforeHook{
			func(ctx context.Context, hctx *hooks.Context) (*hooks.BeforeResult, error) {
				return nil, boom
			},
		},
	})

	_, err := m.RunBefore(context.Background(), hctx(hooks.OpCreatePayment))
	assert.ErrorIs(t, err, boom)
}

func TestRunAfterOrderSpecificThenGlobal(t *testing.T) {
	var calls []string
	after := func(name string) hooks.AfterHook {
		return func(ctx context.Context, hctx *hooks.Context, result any) (*hooks.AfterResult, error) {
			calls = append(calls, name)
			return nil, nil
		}
	}
	m := hooks.NewManager(&hooks.Hooks{
		AfterPayment:       []hooks.AfterHook{after("global")},
		AfterRefundPayment: []hooks.AfterHook{after("refund")},
	})

	res, err := m.RunAfter(context.Background(), hctx(hooks.OpRefundPayment), "result")
	require.NoError(t, err)
	assert.True(t, res.Proceed)
	assert.Equal(t, []string{"refund", "global"}, calls)
}

func TestRunAfterRewritesResult(t *testing.T) {
	m := hooks.NewManager(&hooks.Hooks{
		AfterPayment: []hooks.AfterHook{
			func(ctx context.Context, hctx *hooks.Context, result any) (*hooks.AfterResult, error) {
				return &hooks.AfterResult{Proceed: true, Result: "enriched"}, nil
			},
			func(ctx context.Context, hctx *hooks.Context, result any) (*hooks.AfterResult, error) {
				assert.Equal(t, "enriched", result)
				return nil, nil
			},
		},
	})

	res, err := m.RunAfter(context.Background(), hctx(hooks.OpCreatePayment), "raw")
	require.NoError(t, err)
	assert.Equal(t, "enriched", res.Result)
}

func TestRunAfterAbortStopsDelivery(t *testing.T) {
	m := hooks.NewManager(&hooks.Hooks{
		AfterPayment: []hooks.AfterHook{
			func(ctx context.Context, hctx *hooks.Context, result any) (*hooks.AfterResult, error) {
				return &hooks.AfterResult{Proceed: false}, nil
			},
		},
	})

	res, err := m.RunAfter(context.Background(), hctx(hooks.OpCreatePayment), "raw")
	require.NoError(t, err)
	assert.False(t, res.Proceed)
}

func TestRunErrorNotifiesAllObservers(t *testing.T) {
	var seen []error
	m := hooks.NewManager(&hooks.Hooks{
		OnError: []hooks.ErrorHook{
			func(ctx context.Context, hctx *hooks.Context, err error) { seen = append(seen, err) },
			func(ctx context.Context, hctx *hooks.Context, err error) { seen = append(seen, err) },
		},
	})

	opErr := errors.New("declined")
	m.RunError(context.Background(), hctx(hooks.OpCreatePayment), opErr)
	require.Len(t, seen, 2)
	assert.ErrorIs(t, seen[0], opErr)
}

func TestRegisterSpecificSlots(t *testing.T) {
	m := hooks.NewManager(nil)

	noop := func(ctx context.Context, hctx *hooks.Context) (*hooks.BeforeResult, error) {
		return nil, nil
	}
	assert.NoError(t, m.RegisterBefore(hooks.OpCreatePayment, noop))
	assert.NoError(t, m.RegisterBefore(hooks.OpCapturePayment, noop))
	assert.NoError(t, m.RegisterBefore(hooks.OpRefundPayment, noop))
	assert.Error(t, m.RegisterBefore(hooks.OpVoidPayment, noop))
	assert.Error(t, m.RegisterBefore(hooks.OpGetPayment, noop))

	noopAfter := func(ctx context.Context, hctx *hooks.Context, result any) (*hooks.AfterResult, error) {
		return nil, nil
	}
	assert.NoError(t, m.RegisterAfter(hooks.OpRefundPayment, noopAfter))
	assert.Error(t, m.RegisterAfter(hooks.OpVerifyWebhook, noopAfter))
}

func TestRegisteredHooksRun(t *testing.T) {
	var calls []string
	m := hooks.NewManager(nil)
	m.RegisterBeforePayment(record(&calls, "global"))
	require.NoError(t, m.RegisterBefore(hooks.OpCapturePayment, record(&calls, "capture")))

	_, err := m.RunBefore(context.Background(), hctx(hooks.OpCapturePayment))
	require.NoError(t, err)
	assert.Equal(t, []string{"global", "capture"}, calls)
}

func TestWebhookObservers(t *testing.T) {
	var (
		gotPayload []byte
		gotEvent   any
		gotErr     error
	)
	m := hooks.NewManager(nil)
	m.RegisterWebhookReceived(func(ctx context.Context, gw string, payload []byte) {
		assert.Equal(t, "tabby", gw)
		gotPayload = payload
	})
	m.RegisterWebhookVerified(func(ctx context.Context, gw string, event any) {
		gotEvent = event
	})
	m.RegisterWebhookFailed(func(ctx context.Context, gw string, err error) {
		gotErr = err
	})

	m.RunWebhookReceived(context.Background(), "tabby", []byte(`{"id":"p1"}`))
	m.RunWebhookVerified(context.Background(), "tabby", "event")
	m.RunWebhookFailed(context.Background(), "tabby", errors.New("bad signature"))

	assert.Equal(t, []byte(`{"id":"p1"}`), gotPayload)
	assert.Equal(t, "event", gotEvent)
	assert.EqualError(t, gotErr, "bad signature")
}
