package service

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrCartInvalid        = errors.New("cart validation failed")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotRefundable = errors.New("order cannot be refunded in its current status")
	ErrSignatureInvalid   = errors.New("webhook signature verification failed")
	ErrPayloadInvalid     = errors.New("webhook payload could not be processed")
	ErrActionUnsupported  = errors.New("unsupported order action")
)
