package electoral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Protocol failures, one sentinel per stage so callers can tell them apart.
var (
	ErrSession           = errors.New("session establishment failed")
	ErrChallenge         = errors.New("captcha challenge request failed")
	ErrLookup            = errors.New("lookup submission failed")
	ErrChallengeConsumed = errors.New("captcha challenge already consumed")
	ErrInvalidState      = errors.New("operation not allowed in current session state")
)

// SessionState tracks the protocol position of a lookup session.
type SessionState int

const (
	StateFresh SessionState = iota
	StateSessionEstablished
	StateChallengeIssued
	StateLookupSucceeded
	StateLookupFailed
)

func (s SessionState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateSessionEstablished:
		return "session_established"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateLookupSucceeded:
		return "lookup_succeeded"
	case StateLookupFailed:
		return "lookup_failed"
	default:
		return "unknown"
	}
}

// Challenge is a single-use captcha puzzle issued by the authority. The
// image is rendered to the operator for manual transcription.
type Challenge struct {
	ID    string
	Image []byte
}

// ChallengeGuard records consumed challenge ids so a challenge cannot be
// replayed across sessions or instances. MarkConsumed returns false when the
// id was already spent.
type ChallengeGuard interface {
	MarkConsumed(ctx context.Context, challengeID string) (bool, error)
}

// LookupQuery is one captcha-gated search against the authority.
type LookupQuery struct {
	VoterID       string
	CaptchaAnswer string
	Region        string
}

// Client holds the authority endpoints shared by all sessions.
type Client struct {
	apiBaseURL string
	portalURL  string
	guard      ChallengeGuard
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a lookup client. apiBaseURL is the authority API root,
// portalURL the public portal visited during the cookie handshake.
func NewClient(apiBaseURL, portalURL string, guard ChallengeGuard, logger *zap.Logger) *Client {
	return &Client{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		portalURL:  portalURL,
		guard:      guard,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Named("electoral"),
	}
}

// Session is one protocol run: handshake, challenge, gated search. Sessions
// are not safe for concurrent use; each request gets its own.
type Session struct {
	client      *Client
	jar         http.CookieJar
	state       SessionState
	challengeID string
}

// NewSession starts a fresh session with an empty cookie jar.
func (c *Client) NewSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSession, err)
	}
	return &Session{client: c, jar: jar, state: StateFresh}, nil
}

// State reports the current protocol position.
func (s *Session) State() SessionState {
	return s.state
}

// EstablishSession visits the portal so the authority hands out session
// cookies; every later request in this session carries them. No retry here,
// the caller decides.
func (s *Session) EstablishSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.portalURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSession, err)
	}
	s.setHeaders(req)

	resp, err := s.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSession, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: portal returned status %d", ErrSession, resp.StatusCode)
	}

	s.state = StateSessionEstablished
	s.client.logger.Debug("lookup session established")
	return nil
}

type challengeResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Captcha    string `json:"captcha"`
	ID         string `json:"id"`
}

// RequestChallenge asks the authority for a new captcha. Allowed any time
// after the handshake, including after a consumed challenge, since every
// lookup attempt needs a fresh one.
func (s *Session) RequestChallenge(ctx context.Context) (*Challenge, error) {
	if s.state == StateFresh {
		return nil, fmt.Errorf("%w: challenge requested in state %s", ErrInvalidState, s.state)
	}

	endpoint := s.client.apiBaseURL + "/captcha-service/generateCaptcha"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallenge, err)
	}
	s.setHeaders(req)

	resp, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallenge, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: authority returned status %d", ErrChallenge, resp.StatusCode)
	}

	var decoded challengeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: response is not valid JSON: %v", ErrChallenge, err)
	}
	if decoded.Captcha == "" || decoded.ID == "" {
		return nil, fmt.Errorf("%w: response missing captcha image or id", ErrChallenge)
	}

	image, err := base64.StdEncoding.DecodeString(decoded.Captcha)
	if err != nil {
		return nil, fmt.Errorf("%w: captcha image is not valid base64: %v", ErrChallenge, err)
	}

	s.challengeID = decoded.ID
	s.state = StateChallengeIssued
	s.client.logger.Info("captcha challenge issued", zap.String("challenge_id", decoded.ID))
	return &Challenge{ID: decoded.ID, Image: image}, nil
}

// AdoptChallenge resumes a challenge issued in an earlier session, for flows
// where issuance and submission arrive as separate requests. The single-use
// guard still applies at submission.
func (s *Session) AdoptChallenge(challengeID string) error {
	if s.state != StateSessionEstablished {
		return fmt.Errorf("%w: challenge adopted in state %s", ErrInvalidState, s.state)
	}
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" {
		return fmt.Errorf("%w: challenge id is empty", ErrChallenge)
	}
	s.challengeID = challengeID
	s.state = StateChallengeIssued
	return nil
}

type lookupRequest struct {
	IsPortal    bool   `json:"isPortal"`
	EpicNumber  string `json:"epicNumber"`
	CaptchaData string `json:"captchaData"`
	CaptchaID   string `json:"captchaId"`
	SecurityKey string `json:"securityKey"`
	StateCd     string `json:"stateCd,omitempty"`
}

// SubmitLookup performs the captcha-gated search. The query token is
// upper-cased and the captcha answer lower-cased, matching what the
// authority expects. A region name that maps to no known code is omitted
// from the request, not rejected. The attached challenge is consumed by this
// call whether or not the authority accepts it; a second submission needs a
// fresh challenge.
func (s *Session) SubmitLookup(ctx context.Context, query LookupQuery) (any, error) {
	switch s.state {
	case StateChallengeIssued:
	case StateLookupSucceeded, StateLookupFailed:
		return nil, fmt.Errorf("%w: challenge %q was already submitted", ErrChallengeConsumed, s.challengeID)
	default:
		return nil, fmt.Errorf("%w: lookup submitted in state %s", ErrInvalidState, s.state)
	}

	if s.client.guard != nil {
		fresh, err := s.client.guard.MarkConsumed(ctx, s.challengeID)
		if err != nil {
			// The in-process state machine still enforces single use; a
			// guard outage must not take the kiosk down.
			s.client.logger.Warn("challenge guard unavailable", zap.Error(err))
		} else if !fresh {
			s.state = StateLookupFailed
			return nil, fmt.Errorf("%w: challenge %q", ErrChallengeConsumed, s.challengeID)
		}
	}

	body := lookupRequest{
		IsPortal:    true,
		EpicNumber:  strings.ToUpper(strings.TrimSpace(query.VoterID)),
		CaptchaData: strings.ToLower(strings.TrimSpace(query.CaptchaAnswer)),
		CaptchaID:   s.challengeID,
		SecurityKey: "na",
	}
	if code, ok := RegionCode(query.Region); ok {
		body.StateCd = code
	}

	payload, err := json.Marshal(body)
	if err != nil {
		s.state = StateLookupFailed
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	endpoint := s.client.apiBaseURL + "/elastic/search-by-epic-from-national-display"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		s.state = StateLookupFailed
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		s.state = StateLookupFailed
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		s.state = StateLookupFailed
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	if resp.StatusCode != http.StatusOK {
		s.state = StateLookupFailed
		s.client.logger.Warn("authority rejected lookup",
			zap.Int("status", resp.StatusCode),
			zap.String("challenge_id", s.challengeID))
		return nil, fmt.Errorf("%w: authority returned status %d", ErrLookup, resp.StatusCode)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s.state = StateLookupFailed
		return nil, fmt.Errorf("%w: response is not valid JSON: %v", ErrLookup, err)
	}

	s.state = StateLookupSucceeded
	s.client.logger.Info("lookup succeeded", zap.String("challenge_id", s.challengeID))
	return decoded, nil
}

// FetchChallenge runs the issuance half of the protocol in one go:
// handshake, then a fresh captcha. Used by request-scoped callers that hand
// the challenge to an operator and come back later.
func (c *Client) FetchChallenge(ctx context.Context) (*Challenge, error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, err
	}
	if err := session.EstablishSession(ctx); err != nil {
		return nil, err
	}
	return session.RequestChallenge(ctx)
}

// Lookup runs the submission half: a new handshake, adoption of the
// previously issued challenge, and the gated search.
func (c *Client) Lookup(ctx context.Context, challengeID string, query LookupQuery) (any, error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, err
	}
	if err := session.EstablishSession(ctx); err != nil {
		return nil, err
	}
	if err := session.AdoptChallenge(challengeID); err != nil {
		return nil, err
	}
	return session.SubmitLookup(ctx, query)
}

func (s *Session) do(req *http.Request) (*http.Response, error) {
	client := *s.client.httpClient
	client.Jar = s.jar
	return client.Do(req)
}

// setHeaders applies the browser-equivalent headers the authority expects on
// every request in the session.
func (s *Session) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9,hi;q=0.8")
	req.Header.Set("ApplicationName", "ELECTORAL-SEARCH")
	req.Header.Set("AppName", "ELECTORAL-SEARCH")
	req.Header.Set("ChannelIdObo", "ELECTORAL-SEARCH")
	req.Header.Set("Origin", strings.TrimRight(s.client.portalURL, "/"))
	req.Header.Set("Referer", s.client.portalURL)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")
}
