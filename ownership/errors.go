package ownership

import "errors"

var (
	ErrOwnerNotFound     = errors.New("ownership: owner not found")
	ErrInvalidShares     = errors.New("ownership: shares must be 1..100 and sum to 100")
	ErrInsufficientShare = errors.New("ownership: insufficient share to transfer")
	ErrUnauthorized      = errors.New("ownership: caller not allowed to change shares")
)
