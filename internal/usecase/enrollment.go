package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/voter-check/internal/faceengine"
	"github.com/example/voter-check/internal/logging"
	"github.com/example/voter-check/internal/repository"
)

// IdentityStore defines the persistence operations needed by the enrollment
// and verification flows.
type IdentityStore interface {
	Exists(ctx context.Context, voterID string) (bool, error)
	Insert(ctx context.Context, voterID, fullName string, vector []float32) error
	Get(ctx context.Context, voterID string) (*repository.Identity, error)
	Update(ctx context.Context, voterID, fullName string, vector []float32) error
	Delete(ctx context.Context, voterID string) error
	ListAll(ctx context.Context) ([]repository.RosterEntry, error)
	Count(ctx context.Context) (int64, error)
}

// EnrollmentUseCase binds a voter id to a face embedding, exactly once.
type EnrollmentUseCase struct {
	store  IdentityStore
	engine faceengine.Client
	logger *zap.Logger
}

// NewEnrollmentUseCase constructs a new use case instance.
func NewEnrollmentUseCase(store IdentityStore, engine faceengine.Client, logger *zap.Logger) *EnrollmentUseCase {
	return &EnrollmentUseCase{
		store:  store,
		engine: engine,
		logger: logger.Named("enrollment_usecase"),
	}
}

// Enroll validates the request, rejects duplicates before any inference
// work, obtains the embedding, and persists the binding. Face engine
// failures pass through unchanged; there are no retries. The response
// carries only the voter id, never the image or the embedding.
func (uc *EnrollmentUseCase) Enroll(ctx context.Context, voterID, imagePayload, fullName string) (string, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.enroll", requestID)

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return "", fmt.Errorf("%w: voter_id is required", ErrInvalidInput)
	}
	image, err := DecodeImagePayload(imagePayload)
	if err != nil {
		return "", err
	}

	// The duplicate check runs before the engine call so a re-enrollment
	// fails fast without paying for inference.
	exists, err := uc.store.Exists(ctx, voterID)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.enroll.exists", requestID, err)
		opLogger.Error("duplicate check failed", zap.Error(wrapped))
		return "", wrapped
	}
	if exists {
		return "", repository.ErrDuplicateIdentity
	}

	start := time.Now()
	vector, err := uc.engine.Represent(ctx, image)
	if err != nil {
		opLogger.Warn("face engine rejected enrollment image",
			zap.Error(err), zap.String("voter_id", voterID))
		return "", err
	}
	opLogger.Info("embedding computed",
		zap.String("voter_id", voterID),
		zap.Int("dimensions", len(vector)),
		zap.Duration("inference", time.Since(start)))

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		fullName = voterID
	}

	// A concurrent enrollment for the same id loses the insert race at the
	// database and surfaces here as a duplicate; it is never merged.
	if err := uc.store.Insert(ctx, voterID, fullName, vector); err != nil {
		opLogger.Error("failed to persist enrollment",
			zap.Error(err), zap.String("voter_id", voterID))
		return "", err
	}

	return voterID, nil
}

// UpdateEnrollment is the administrative re-registration path: it replaces
// the stored name and/or embedding of an existing record. When a new image
// is supplied the embedding is recomputed through the engine first.
func (uc *EnrollmentUseCase) UpdateEnrollment(ctx context.Context, voterID, fullName, imagePayload string) error {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.update_enrollment", requestID)

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return fmt.Errorf("%w: voter_id is required", ErrInvalidInput)
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" && strings.TrimSpace(imagePayload) == "" {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	var vector []float32
	if strings.TrimSpace(imagePayload) != "" {
		image, err := DecodeImagePayload(imagePayload)
		if err != nil {
			return err
		}
		vector, err = uc.engine.Represent(ctx, image)
		if err != nil {
			opLogger.Warn("face engine rejected update image",
				zap.Error(err), zap.String("voter_id", voterID))
			return err
		}
	}

	if err := uc.store.Update(ctx, voterID, fullName, vector); err != nil {
		opLogger.Error("failed to update enrollment",
			zap.Error(err), zap.String("voter_id", voterID))
		return err
	}
	return nil
}
