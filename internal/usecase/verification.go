package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/voter-check/internal/embedding"
	"github.com/example/voter-check/internal/faceengine"
	"github.com/example/voter-check/internal/logging"
	"github.com/example/voter-check/internal/repository"
)

// VerifyResult is the outcome of a verification attempt. Score is the raw
// cosine similarity, unrounded, for audit use.
type VerifyResult struct {
	RequestID string    `json:"request_id"`
	VoterID   string    `json:"voter_id"`
	Verified  bool      `json:"verified"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationUseCase compares a probe face against the enrolled embedding.
type VerificationUseCase struct {
	store     IdentityStore
	cache     Cache
	engine    faceengine.Client
	logger    *zap.Logger
	threshold float64
	resultTTL time.Duration
}

// NewVerificationUseCase constructs a new use case instance. The threshold
// is the deployment-configured verification cutoff.
func NewVerificationUseCase(store IdentityStore, cache Cache, engine faceengine.Client, threshold float64, logger *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{
		store:     store,
		cache:     cache,
		engine:    engine,
		logger:    logger.Named("verification_usecase"),
		threshold: threshold,
		resultTTL: 10 * time.Minute,
	}
}

// Verify looks up the enrolled embedding, obtains an embedding for the probe
// image, and decides on cosine similarity. An unknown voter id fails before
// the engine is ever called; verification never auto-enrolls.
func (uc *VerificationUseCase) Verify(ctx context.Context, voterID, imagePayload string) (*VerifyResult, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify", requestID)

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, fmt.Errorf("%w: voter_id is required", ErrInvalidInput)
	}
	image, err := DecodeImagePayload(imagePayload)
	if err != nil {
		return nil, err
	}

	identity, err := uc.store.Get(ctx, voterID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			err = logging.NewOperationError("usecase.verify.get", requestID, err)
			opLogger.Error("enrollment lookup failed", zap.Error(err))
		}
		return nil, err
	}

	start := time.Now()
	probe, err := uc.engine.Represent(ctx, image)
	if err != nil {
		opLogger.Warn("face engine rejected probe image",
			zap.Error(err), zap.String("voter_id", voterID))
		return nil, err
	}

	score, err := embedding.Cosine(identity.Embedding, probe)
	if err != nil {
		// A degenerate or mismatched embedding is a hard failure, never a
		// score of zero.
		wrapped := logging.NewOperationError("usecase.verify.similarity", requestID, err)
		opLogger.Error("similarity computation failed", zap.Error(wrapped))
		return nil, wrapped
	}

	result := &VerifyResult{
		RequestID: requestID,
		VoterID:   voterID,
		Verified:  embedding.Decide(score, uc.threshold),
		Score:     score,
		CreatedAt: time.Now().UTC(),
	}
	opLogger.Info("verification decided",
		zap.String("voter_id", voterID),
		zap.Bool("verified", result.Verified),
		zap.Float64("score", score),
		zap.Float64("threshold", uc.threshold),
		zap.Duration("inference", time.Since(start)))

	// The cache is an audit convenience; a write failure must not fail a
	// decided verification.
	if serialized, err := json.Marshal(result); err == nil {
		if err := uc.cache.Set(ctx, resultCacheKey(requestID), string(serialized), uc.resultTTL); err != nil {
			opLogger.Warn("failed to cache verification result", zap.Error(err))
		}
	}

	return result, nil
}

// GetResult retrieves a recent verification outcome by request id.
func (uc *VerificationUseCase) GetResult(ctx context.Context, requestID string) (*VerifyResult, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrInvalidInput)
	}

	cached, err := uc.cache.Get(ctx, resultCacheKey(requestID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		wrapped := logging.NewOperationError("usecase.get_result", requestID, err)
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).
			Error("failed to read cached result", zap.Error(wrapped))
		return nil, wrapped
	}

	var result VerifyResult
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		return nil, logging.NewOperationError("usecase.get_result", requestID, err)
	}
	return &result, nil
}

func resultCacheKey(requestID string) string {
	return fmt.Sprintf("verification:%s", requestID)
}
