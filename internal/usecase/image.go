package usecase

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput flags empty or malformed request fields. It is always
// raised before any store or inference work happens.
var ErrInvalidInput = errors.New("invalid input")

// DecodeImagePayload turns a base64 request field into raw image bytes.
// Payloads may carry a data-URL prefix ("data:image/jpeg;base64,...") which
// is stripped before decoding.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}

	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some capture clients omit padding.
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: image is not valid base64", ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: decoded image is empty", ErrInvalidInput)
	}
	return data, nil
}
