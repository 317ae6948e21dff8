package auction

import "errors"

// Validation errors. Each leaves all state unchanged and is never
// retried automatically.
var (
	ErrAuctionNotExists  = errors.New("auction does not exist")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidBidPrice   = errors.New("invalid bid price")
	ErrInReverseStage    = errors.New("auction is already in reverse stage")
	ErrInvalidFeedPrice  = errors.New("invalid oracle feed price")
	ErrMustAfterShutdown = errors.New("only available during emergency shutdown")
)
