package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Connection-time failures. Both reject the connection, nothing is registered.
	ErrUnauthorized   = fmt.Errorf("unauthorized")
	ErrMissingToken   = fmt.Errorf("%w: authentication token required", ErrUnauthorized)
	ErrMembershipLoad = fmt.Errorf("membership load failure")

	// Delivery failures, scoped to one publish or one connection.
	ErrPublishDegraded  = fmt.Errorf("broadcast transport degraded, local delivery only")
	ErrDeliveryDropped  = fmt.Errorf("outbound queue overflow, frame dropped")
	ErrConnectionClosed = fmt.Errorf("connection closed")

	ErrUnknownConnection = fmt.Errorf("unknown connection")
	ErrUnknownSignal     = fmt.Errorf("unknown signal")
	ErrNotMember         = fmt.Errorf("connection is not subscribed to this chat")
	ErrNoSharedChat      = fmt.Errorf("no shared chat with this user")
)
