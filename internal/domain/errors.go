package domain

import "errors"

var (
	ErrPersistence           = errors.New("persistence failure")
	ErrTransport             = errors.New("transport failure")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrAlreadyRegistered     = errors.New("group already registered")
	ErrRegisteredAsOtherRole = errors.New("group registered with another role")
	ErrNotRegistered         = errors.New("group not registered")
	ErrNotTraderGroup        = errors.New("not a trader group")
	ErrEmptyUsername         = errors.New("empty username")
	ErrNotMerchantGroup      = errors.New("not a merchant group")
	ErrInvalidAppealIDRule   = errors.New("invalid appeal id rule")
	ErrInvalidDecision       = errors.New("invalid decision payload")
	ErrInvalidAppealKey      = errors.New("invalid appeal key")
)
