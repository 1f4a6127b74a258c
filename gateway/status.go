package gateway

// Status is the normalized payment state shared by all gateways. Adapter
// status mappers are total: a provider state with no mapping falls back to
// StatusPending rather than failing.
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusAuthorized        Status = "authorized"
	StatusApproved          Status = "approved"
	StatusPaid              Status = "paid"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// RefundStatus is the normalized refund state.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)
