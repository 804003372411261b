package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/voter-check/internal/electoral"
	"github.com/example/voter-check/internal/faceengine"
	"github.com/example/voter-check/internal/repository"
	"github.com/example/voter-check/internal/usecase"
)

// Enroller is the enrollment surface used by the face routes.
type Enroller interface {
	Enroll(ctx context.Context, voterID, imagePayload, fullName string) (string, error)
	UpdateEnrollment(ctx context.Context, voterID, fullName, imagePayload string) error
}

// Verifier is the verification surface used by the face routes.
type Verifier interface {
	Verify(ctx context.Context, voterID, imagePayload string) (*usecase.VerifyResult, error)
	GetResult(ctx context.Context, requestID string) (*usecase.VerifyResult, error)
}

// Roster is the administrative read/delete surface over the identity store.
type Roster interface {
	ListAll(ctx context.Context) ([]repository.RosterEntry, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, voterID string) error
}

// LookupAuthority is the external electoral lookup surface.
type LookupAuthority interface {
	FetchChallenge(ctx context.Context) (*electoral.Challenge, error)
	Lookup(ctx context.Context, challengeID string, query electoral.LookupQuery) (any, error)
}

type enrollRequest struct {
	VoterID  string `json:"voter_id"`
	Image    string `json:"image"`
	FullName string `json:"full_name"`
}

type verifyRequest struct {
	VoterID string `json:"voter_id"`
	Image   string `json:"image"`
}

type searchRequest struct {
	VoterID       string `json:"voter_id"`
	Region        string `json:"region"`
	CaptchaAnswer string `json:"captcha_answer"`
	CaptchaID     string `json:"captcha_id"`
}

type adminUpdateRequest struct {
	FullName string `json:"full_name"`
	Image    string `json:"image"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router. The admin roster
// routes sit behind the provided auth middleware; the kiosk-facing face and
// lookup routes are open, matching the deployment model.
func RegisterRoutes(router *gin.Engine, enroller Enroller, verifier Verifier, roster Roster, authority LookupAuthority, adminAuth gin.HandlerFunc, logger *zap.Logger) {
	logger = logger.Named("handlers")

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/face/enroll", func(c *gin.Context) {
		var req enrollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		voterID, err := enroller.Enroll(c.Request.Context(), req.VoterID, req.Image, req.FullName)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"voter_id": voterID})
	})

	router.POST("/face/verify", func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		result, err := verifier.Verify(c.Request.Context(), req.VoterID, req.Image)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"request_id": result.RequestID,
			"verified":   result.Verified,
			"score":      result.Score,
		})
	})

	router.GET("/face/result/:request_id", func(c *gin.Context) {
		result, err := verifier.GetResult(c.Request.Context(), c.Param("request_id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	router.GET("/captcha", func(c *gin.Context) {
		challenge, err := authority.FetchChallenge(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"captcha_id": challenge.ID,
			"captcha":    base64.StdEncoding.EncodeToString(challenge.Image),
		})
	})

	router.POST("/voter/search", func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		if req.VoterID == "" || req.CaptchaAnswer == "" || req.CaptchaID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "voter_id, captcha_answer and captcha_id are required"})
			return
		}
		raw, err := authority.Lookup(c.Request.Context(), req.CaptchaID, electoral.LookupQuery{
			VoterID:       req.VoterID,
			CaptchaAnswer: req.CaptchaAnswer,
			Region:        req.Region,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		record, ok := electoral.Normalize(raw)
		if !ok {
			// No recognizable record shape; hand the payload back for
			// manual inspection rather than dropping it.
			c.JSON(http.StatusOK, gin.H{"success": false, "unparsed": true, "raw": raw})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": record})
	})

	admin := router.Group("/admin", adminAuth)
	admin.GET("/voters", func(c *gin.Context) {
		entries, err := roster.ListAll(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"voters": entries})
	})
	admin.GET("/voters/count", func(c *gin.Context) {
		count, err := roster.Count(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	})
	admin.PUT("/voters/:voter_id", func(c *gin.Context) {
		var req adminUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		if err := enroller.UpdateEnrollment(c.Request.Context(), c.Param("voter_id"), req.FullName, req.Image); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"voter_id": c.Param("voter_id")})
	})
	admin.DELETE("/voters/:voter_id", func(c *gin.Context) {
		if err := roster.Delete(c.Request.Context(), c.Param("voter_id")); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"voter_id": c.Param("voter_id")})
	})
}

// respondError translates the error taxonomy into HTTP statuses: bad input
// and engine rejections are client errors, missing records are 404, replayed
// challenges and duplicate enrollments are conflicts, authority protocol
// failures are upstream errors, and everything else is an opaque 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, faceengine.ErrNoFaceDetected),
		errors.Is(err, faceengine.ErrMultipleFaces),
		errors.Is(err, faceengine.ErrImageDecode):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateIdentity),
		errors.Is(err, electoral.ErrChallengeConsumed),
		errors.Is(err, electoral.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, electoral.ErrSession),
		errors.Is(err, electoral.ErrChallenge),
		errors.Is(err, electoral.ErrLookup):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
