package debate

import "errors"

var (
	ErrInvalidState    = errors.New("invalid debate state")
	ErrInvalidConfig   = errors.New("invalid debate config")
	ErrTemplateUnknown = errors.New("unknown debate template")
	ErrVariantUnknown  = errors.New("unknown school variant")
)
