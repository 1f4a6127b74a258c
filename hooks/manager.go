package hooks

import (
	"context"
	"fmt"
	"sync"
)

// Manager owns the registered hooks and runs them in the documented order:
// before = global then operation-specific, after = operation-specific then
// global, error = global only.
type Manager struct {
	mu    sync.RWMutex
	hooks Hooks
}

// NewManager builds a manager from an initial hook set. A nil set is valid.
func NewManager(h *Hooks) *Manager {
	m := &Manager{}
	if h != nil {
		m.hooks = *h
	}
	return m
}

// specificBefore maps an operation to its dedicated before slot. Only the
// money-moving operations have one.
func (m *Manager) specificBefore(op Operation) []BeforeHook {
	switch op {
	case OpCreatePayment:
		return m.hooks.BeforeCreatePayment
	case OpCapturePayment:
		return m.hooks.BeforeCapturePayment
	case OpRefundPayment:
		return m.hooks.BeforeRefundPayment
	}
	return nil
}

func (m *Manager) specificAfter(op Operation) []AfterHook {
	switch op {
	case OpCreatePayment:
		return m.hooks.AfterCreatePayment
	case OpCapturePayment:
		return m.hooks.AfterCapturePayment
	case OpRefundPayment:
		return m.hooks.AfterRefundPayment
	}
	return nil
}

// RunBefore executes the before pipeline. Each hook sees the params as left by
// the previous one. The first non-proceed result wins.
func (m *Manager) RunBefore(ctx context.Context, hctx *Context) (*BeforeResult, error) {
	m.mu.RLock()
	chain := make([]BeforeHook, 0, len(m.hooks.BeforePayment)+4)
	chain = append(chain, m.hooks.BeforePayment...)
	chain = append(chain, m.specificBefore(hctx.Operation)...)
	m.mu.RUnlock()

	for _, h := range chain {
		res, err := h(ctx, hctx)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		if !res.Proceed {
			return res, nil
		}
		if res.Params != nil {
			hctx.Params = res.Params
		}
	}
	return &BeforeResult{Proceed: true, Params: hctx.Params}, nil
}

// RunAfter executes the after pipeline over the operation result. Each hook
// sees the result as left by the previous one.
func (m *Manager) RunAfter(ctx context.Context, hctx *Context, result any) (*AfterResult, error) {
	m.mu.RLock()
	chain := make([]AfterHook, 0, len(m.hooks.AfterPayment)+4)
	chain = append(chain, m.specificAfter(hctx.Operation)...)
	chain = append(chain, m.hooks.AfterPayment...)
	m.mu.RUnlock()

	current := result
	for _, h := range chain {
		res, err := h(ctx, hctx, current)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		if !res.Proceed {
			return res, nil
		}
		if res.Result != nil {
			current = res.Result
		}
	}
	return &AfterResult{Proceed: true, Result: current}, nil
}

// RunError notifies the global error observers. Observers cannot alter or
// swallow the error.
func (m *Manager) RunError(ctx context.Context, hctx *Context, opErr error) {
	m.mu.RLock()
	chain := append([]ErrorHook(nil), m.hooks.OnError...)
	m.mu.RUnlock()
	for _, h := range chain {
		h(ctx, hctx, opErr)
	}
}

// RunWebhookReceived notifies observers of a raw incoming webhook.
func (m *Manager) RunWebhookReceived(ctx context.Context, gateway string, payload []byte) {
	m.mu.RLock()
	chain := append([]WebhookReceivedHook(nil), m.hooks.OnWebhookReceived...)
	m.mu.RUnlock()
	for _, h := range chain {
		h(ctx, gateway, payload)
	}
}

// RunWebhookVerified notifies observers of a verified, parsed event.
func (m *Manager) RunWebhookVerified(ctx context.Context, gateway string, event any) {
	m.mu.RLock()
	chain := append([]WebhookVerifiedHook(nil), m.hooks.OnWebhookVerified...)
	m.mu.RUnlock()
	for _, h := range chain {
		h(ctx, gateway, event)
	}
}

// RunWebhookFailed notifies observers of a webhook that did not verify.
func (m *Manager) RunWebhookFailed(ctx context.Context, gateway string, whErr error) {
	m.mu.RLock()
	chain := append([]WebhookFailedHook(nil), m.hooks.OnWebhookFailed...)
	m.mu.RUnlock()
	for _, h := range chain {
		h(ctx, gateway, whErr)
	}
}

// RegisterBeforePayment appends a global before-hook at runtime.
func (m *Manager) RegisterBeforePayment(h BeforeHook) {
	m.mu.Lock()
	m.hooks.BeforePayment = append(m.hooks.BeforePayment, h)
	m.mu.Unlock()
}

// RegisterAfterPayment appends a global after-hook at runtime.
func (m *Manager) RegisterAfterPayment(h AfterHook) {
	m.mu.Lock()
	m.hooks.AfterPayment = append(m.hooks.AfterPayment, h)
	m.mu.Unlock()
}

// RegisterOnError appends a global error observer at runtime.
func (m *Manager) RegisterOnError(h ErrorHook) {
	m.mu.Lock()
	m.hooks.OnError = append(m.hooks.OnError, h)
	m.mu.Unlock()
}

// RegisterBefore appends an operation-specific before-hook. Only the three
// money-moving operations carry a specific slot.
func (m *Manager) RegisterBefore(op Operation, h BeforeHook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch op {
	case OpCreatePayment:
		m.hooks.BeforeCreatePayment = append(m.hooks.BeforeCreatePayment, h)
	case OpCapturePayment:
		m.hooks.BeforeCapturePayment = append(m.hooks.BeforeCapturePayment, h)
	case OpRefundPayment:
		m.hooks.BeforeRefundPayment = append(m.hooks.BeforeRefundPayment, h)
	default:
		return fmt.Errorf("operation %q has no before-hook slot", op)
	}
	return nil
}

// RegisterAfter appends an operation-specific after-hook.
func (m *Manager) RegisterAfter(op Operation, h AfterHook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch op {
	case OpCreatePayment:
		m.hooks.AfterCreatePayment = append(m.hooks.AfterCreatePayment, h)
	case OpCapturePayment:
		m.hooks.AfterCapturePayment = append(m.hooks.AfterCapturePayment, h)
	case OpRefundPayment:
		m.hooks.AfterRefundPayment = append(m.hooks.AfterRefundPayment, h)
	default:
		return fmt.Errorf("operation %q has no after-hook slot", op)
	}
	return nil
}

// RegisterWebhookReceived appends a webhook-received observer.
func (m *Manager) RegisterWebhookReceived(h WebhookReceivedHook) {
	m.mu.Lock()
	m.hooks.OnWebhookReceived = append(m.hooks.OnWebhookReceived, h)
	m.mu.Unlock()
}

// RegisterWebhookVerified appends a webhook-verified observer.
func (m *Manager) RegisterWebhookVerified(h WebhookVerifiedHook) {
	m.mu.Lock()
	m.hooks.OnWebhookVerified = append(m.hooks.OnWebhookVerified, h)
	m.mu.Unlock()
}

// RegisterWebhookFailed appends a webhook-failed observer.
func (m *Manager) RegisterWebhookFailed(h WebhookFailedHook) {
	m.mu.Lock()
	m.hooks.OnWebhookFailed = append(m.hooks.OnWebhookFailed, h)
	m.mu.Unlock()
}
