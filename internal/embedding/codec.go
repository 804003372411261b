package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEmbedding indicates a stored or transported embedding that is
// not a well-formed numeric array.
var ErrMalformedEmbedding = errors.New("malformed embedding")

// Encode serializes an embedding vector to its canonical text form, a JSON
// numeric array. The same form is stored in the database and sent over the
// wire, so Decode(Encode(v)) must reproduce v exactly at float32 precision.
func Encode(vector []float32) (string, error) {
	if len(vector) == 0 {
		return "", fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
	}
	data, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEmbedding, err)
	}
	return string(data), nil
}

// Decode parses the canonical text form back into a vector.
func Decode(text string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(text), &vector); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEmbedding, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
	}
	return vector, nil
}
