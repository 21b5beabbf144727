package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaMismatch = errors.New("protocol: schema mismatch")
	ErrTruncatedFrame = errors.New("protocol: truncated frame")
	ErrBufferTooSmall = errors.New("protocol: buffer too small")
)

// SchemaMismatchError reports a header that names a different template or schema.
type SchemaMismatchError struct {
	TemplateID     uint16
	SchemaID       uint16
	WantTemplateID uint16
	WantSchemaID   uint16
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf(
		"protocol: schema mismatch template_id=%d schema_id=%d want_template_id=%d want_schema_id=%d",
		e.TemplateID,
		e.SchemaID,
		e.WantTemplateID,
		e.WantSchemaID,
	)
}

func (e *SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}

func truncated(what string, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrTruncatedFrame, what, need, have)
}
