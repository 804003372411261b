package faceengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/example/voter-check/internal/logging"
)

// HTTPClient talks to the face inference sidecar over JSON. The sidecar wraps
// the detection + alignment + embedding model; this client only moves bytes
// and translates its error codes.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient builds a client for the given sidecar base URL.
func NewHTTPClient(baseURL string, logger *zap.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid face engine url %q: %w", baseURL, err)
	}
	return &HTTPClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Named("faceengine"),
	}, nil
}

type representRequest struct {
	Image string `json:"image"`
}

type representResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Represent sends the raw image to the sidecar and returns its embedding.
// The engine requires exactly one face; its NO_FACE / MULTIPLE_FACES /
// DECODE_ERROR codes map onto the package sentinels unchanged. No retries.
func (c *HTTPClient) Represent(ctx context.Context, image []byte) ([]float32, error) {
	body, err := json.Marshal(representRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, logging.NewOperationError("faceengine.represent", "", err)
	}

	endpoint := c.baseURL.JoinPath("represent").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, logging.NewOperationError("faceengine.represent", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("faceengine.represent", "", err)
		c.logger.Error("face engine call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, logging.NewOperationError("faceengine.represent", "", err)
	}

	var decoded representResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		wrapped := logging.NewOperationError("faceengine.represent", "",
			fmt.Errorf("status %d: unreadable response: %w", resp.StatusCode, err))
		c.logger.Error("face engine returned malformed response", zap.Error(wrapped))
		return nil, wrapped
	}

	if resp.StatusCode != http.StatusOK {
		if err := sentinelForCode(decoded.Error.Code); err != nil {
			return nil, err
		}
		wrapped := logging.NewOperationError("faceengine.represent", "",
			fmt.Errorf("status %d: %s", resp.StatusCode, decoded.Error.Message))
		c.logger.Error("face engine rejected image", zap.Error(wrapped),
			zap.Int("status", resp.StatusCode), zap.String("code", decoded.Error.Code))
		return nil, wrapped
	}

	if len(decoded.Embedding) == 0 {
		return nil, logging.NewOperationError("faceengine.represent", "",
			fmt.Errorf("engine returned success without an embedding"))
	}
	return decoded.Embedding, nil
}

func sentinelForCode(code string) error {
	switch code {
	case "NO_FACE":
		return ErrNoFaceDetected
	case "MULTIPLE_FACES":
		return ErrMultipleFaces
	case "DECODE_ERROR":
		return ErrImageDecode
	default:
		return nil
	}
}
