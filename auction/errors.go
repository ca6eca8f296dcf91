package auction

import (
	"errors"

	"lance/repository"
)

var (
	ErrNotFound              = repository.ErrNotFound
	ErrStoreUnavailable      = repository.ErrStoreUnavailable
	ErrValidation            = errors.New("validation failed")
	ErrAuctionEnded          = errors.New("auction has ended")
	ErrTooLow                = errors.New("bid must be higher than current price")
	ErrBelowMinimumIncrement = errors.New("bid below minimum increment")
	ErrSelfBid               = errors.New("cannot bid on your own auction")
	ErrConflictRetry         = errors.New("too many concurrent bids, retry")
	ErrForbidden             = errors.New("forbidden")
)

// 對外的錯誤代碼
const (
	ReasonNotFound              = "not_found"
	ReasonValidation            = "validation_failed"
	ReasonAuctionEnded          = "auction_ended"
	ReasonTooLow                = "too_low"
	ReasonBelowMinimumIncrement = "below_minimum_increment"
	ReasonSelfBid               = "self_bid_forbidden"
	ReasonConflictRetry         = "conflict_retry"
	ReasonStoreUnavailable      = "store_unavailable"
	ReasonForbidden             = "forbidden"
	ReasonInternal              = "internal_error"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrNotFound, ReasonNotFound},
	{ErrValidation, ReasonValidation},
	{ErrAuctionEnded, ReasonAuctionEnded},
	{ErrTooLow, ReasonTooLow},
	{ErrBelowMinimumIncrement, ReasonBelowMinimumIncrement},
	{ErrSelfBid, ReasonSelfBid},
	{ErrConflictRetry, ReasonConflictRetry},
	{ErrForbidden, ReasonForbidden},
	{ErrStoreUnavailable, ReasonStoreUnavailable},
}

// Reason 將錯誤轉為對外的錯誤代碼
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}

// rejection 帶有給使用者看的訊息，同時保留 sentinel 供 errors.Is 判斷
type rejection struct {
	sentinel error
	message  string
}

func reject(sentinel error, message string) error {
	return &rejection{sentinel: sentinel, message: message}
}

func (r *rejection) Error() string {
	return r.message
}

func (r *rejection) Unwrap() error {
	return r.sentinel
}

// Message 取出給使用者看的訊息
func Message(err error) string {
	var r *rejection
	if errors.As(err, &r) {
		return r.message
	}
	for _, item := range reasons {
		if errors.Is(err, item.err) {
			return item.err.Error()
		}
	}
	return "internal error"
}
