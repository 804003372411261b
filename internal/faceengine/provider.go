package faceengine

import (
	"context"
	"errors"
)

// Errors reported by the face engine. Zero faces and multiple faces are both
// hard failures; the engine never picks a best-guess face.
var (
	ErrNoFaceDetected = errors.New("no face detected in the image")
	ErrMultipleFaces  = errors.New("multiple faces detected, exactly one is required")
	ErrImageDecode    = errors.New("image could not be decoded")
)

// Client exposes the embedding operation used by the enrollment and
// verification flows. Implementations must return exactly one embedding or
// one of the sentinel errors above; transport failures are returned as-is.
type Client interface {
	Represent(ctx context.Context, image []byte) ([]float32, error)
}
