package producer

import "errors"

var (
	ErrInvalidAmount      = errors.New("producer: amount must be positive")
	ErrInsufficientEnergy = errors.New("producer: insufficient energy stored")
	ErrCapacityExceeded   = errors.New("producer: transaction history is full")
)
