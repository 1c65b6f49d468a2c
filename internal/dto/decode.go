package dto

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/coursenotify/common"
)

var validate = validator.New()

// DecodePayload unmarshals and validates a job payload. Failures wrap
// common.ErrInvalidPayload so the job is not retried.
func DecodePayload[T any](raw []byte, dest *T) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode payload: %w: %v", common.ErrInvalidPayload, err)
	}

	if err := validate.Struct(dest); err != nil {
		return fmt.Errorf("validate payload: %w: %v", common.ErrInvalidPayload, err)
	}

	return nil
}

// ValidatePayload checks a payload before it is enqueued.
func ValidatePayload(payload any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}
	return nil
}
