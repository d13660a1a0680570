package contracts

import "errors"

// Expected, recoverable failure conditions reported to callers.
// Handlers distinguish them with errors.Is; they are never collapsed into a
// generic failure.
var (
	// ErrValidation covers malformed requests: non-positive quantity or price
	ErrValidation = errors.New("validation failed")

	// ErrSymbolNotFound means the requested pair does not exist
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrCoinNotFound means the requested currency does not exist
	ErrCoinNotFound = errors.New("coin not found")

	// ErrInsufficientFunds means collateral reservation failed; nothing was
	// persisted
	ErrInsufficientFunds = errors.New("insufficient available balance")

	// ErrUnsupported is a feature gate rejection, e.g. margin trading disabled
	ErrUnsupported = errors.New("not supported")

	// ErrNoLiquidity rejects a market buy against an empty ask book
	ErrNoLiquidity = errors.New("no liquidity")

	// ErrOrderNotFound means the order id does not exist
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnauthorized means the caller does not own the order
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState rejects an operation on a terminal order
	ErrInvalidState = errors.New("invalid order state")
)
