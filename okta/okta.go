package okta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Authentication transaction statuses returned by the Okta authn API.
const (
	StatusSuccess         = "SUCCESS"
	StatusMfaRequired     = "MFA_REQUIRED"
	StatusMfaChallenge    = "MFA_CHALLENGE"
	StatusPasswordExpired = "PASSWORD_EXPIRED"
	StatusLockedOut       = "LOCKED_OUT"
	StatusMfaEnroll       = "MFA_ENROLL"
)

// Factor results reported while a factor verification is in flight.
const (
	FactorResultWaiting  = "WAITING"
	FactorResultTimeout  = "TIMEOUT"
	FactorResultRejected = "REJECTED"
)

var (
	ErrInvalidCredentials = errors.New("authentication failure (username or password invalid)")
	ErrPasswordExpired    = errors.New("your Okta password has expired and must be changed before logging in")
	ErrAccountLockedOut   = errors.New("your Okta account is locked out")
	ErrMfaEnrollRequired  = errors.New("your Okta account requires MFA enrolment before it can be used")
	ErrInvalidPassCode    = errors.New("MFA pass code rejected")
)

// MfaVerificationError is a terminal, non-retryable factor outcome
// (timeout, rejection, or an error status from Okta).
type MfaVerificationError struct {
	FactorResult string
	Status       string
}

func (e *MfaVerificationError) Error() string {
	if e.FactorResult != "" {
		return fmt.Sprintf("MFA verification failed (%s)", e.FactorResult)
	}

	return fmt.Sprintf("MFA verification failed (status %s)", e.Status)
}

// UnsupportedFactorError indicates the selected factor type is one this
// tool cannot drive.
type UnsupportedFactorError struct {
	FactorType string
}

func (e *UnsupportedFactorError) Error() string {
	return fmt.Sprintf("unsupported MFA factor type '%s' (only push and TOTP are supported)", e.FactorType)
}

// InvalidSamlResponseError indicates the SAML sign-in page could not be
// turned into an assertion. Never retried.
type InvalidSamlResponseError struct {
	Reason string
}

func (e *InvalidSamlResponseError) Error() string {
	return fmt.Sprintf("invalid SAML response from Okta: %s", e.Reason)
}

type userCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	StateToken string `json:"stateToken"`
	PassCode   string `json:"passCode,omitempty"`
}

type apiLink struct {
	Href string `json:"href"`
}

type factorLinks struct {
	Verify apiLink `json:"verify"`
}

type factorChallenge struct {
	CorrectAnswer *int `json:"correctAnswer"`
}

type factorEmbedded struct {
	Challenge factorChallenge `json:"challenge"`
}

// Factor is one MFA factor offered by Okta for the current transaction.
type Factor struct {
	ID         string         `json:"id"`
	FactorType string         `json:"factorType"`
	Provider   string         `json:"provider"`
	VendorName string         `json:"vendorName"`
	Links      factorLinks    `json:"_links"`
	Embedded   factorEmbedded `json:"_embedded"`
}

type authnEmbedded struct {
	Factors []Factor `json:"factors"`
	Factor  Factor   `json:"factor"`
}

// AuthnResponse is the decoded body of one authn or factor-verify call.
type AuthnResponse struct {
	StateToken   string        `json:"stateToken"`
	SessionToken string        `json:"sessionToken"`
	ExpiresAt    time.Time     `json:"expiresAt"`
	Status       string        `json:"status"`
	FactorResult string        `json:"factorResult"`
	Embedded     authnEmbedded `json:"_embedded"`
}

// Factors returns the MFA factors Okta offered for this transaction.
func (r AuthnResponse) Factors() []Factor {
	return r.Embedded.Factors
}

// ChallengeAnswer returns the number-challenge answer the user must tap
// in the push app, if Okta issued one.
func (r AuthnResponse) ChallengeAnswer() (int, bool) {
	answer := r.Embedded.Factor.Embedded.Challenge.CorrectAnswer

	if answer == nil {
		return 0, false
	}

	return *answer, true
}

type apiError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorSummary string `json:"errorSummary"`
}

// Client talks to one Okta org. Each client owns an isolated cookie jar,
// so a fresh client must be used per authentication attempt; the jar
// carries the session cookies between primary auth, MFA verification and
// the SAML redirect.
type Client struct {
	// Clock paces the push-factor poll loop; swap for a fake in tests.
	Clock clockwork.Clock

	// PollInterval is the delay between push verification polls.
	PollInterval time.Duration

	Log *log.Entry

	baseURL       *url.URL
	httpClient    *http.Client
	sessionPrimed bool
}

// NewClient builds a client for the given Okta org domain. The domain
// must be an absolute URL.
func NewClient(domain string) (*Client, error) {
	baseURL, err := url.Parse(domain)

	if err != nil {
		return nil, err
	}

	if !baseURL.IsAbs() {
		return nil, fmt.Errorf("okta domain '%s' must be an absolute URL", domain)
	}

	jar, err := cookiejar.New(nil)

	if err != nil {
		return nil, err
	}

	return &Client{
		Clock:        clockwork.NewRealClock(),
		PollInterval: 2 * time.Second,
		Log:          log.WithField("component", "okta"),
		baseURL:      baseURL,
		httpClient: &http.Client{
			Jar: jar,
			// Redirects are followed by hand so the SAML endpoints can
			// be inspected before their Location headers are chased.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (c *Client) endpoint(path string) *url.URL {
	ref, _ := url.Parse(path)

	return c.baseURL.ResolveReference(ref)
}

// Authenticate performs primary (username/password) authentication and
// classifies the transaction status. Password-expired, locked-out and
// enrolment-required states come back as typed errors alongside the
// decoded response; a 401 maps to ErrInvalidCredentials.
func (c *Client) Authenticate(username string, password string) (AuthnResponse, error) {
	if username == "" || password == "" {
		return AuthnResponse{}, errors.New("username and password must not be empty")
	}

	authBody, err := json.Marshal(userCredentials{Username: username, Password: password})

	if err != nil {
		return AuthnResponse{}, err
	}

	resp, err := c.httpClient.Post(c.endpoint("/api/v1/authn").String(), "application/json", bytes.NewBuffer(authBody))

	if err != nil {
		return AuthnResponse{}, err
	}

	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)

	if err != nil {
		return AuthnResponse{}, err
	}

	if resp.StatusCode == 401 {
		return AuthnResponse{}, ErrInvalidCredentials
	} else if resp.StatusCode >= 300 {
		return AuthnResponse{}, fmt.Errorf("could not authenticate (%s): %s", resp.Status, errorSummary(body))
	}

	var authResponse AuthnResponse

	err = json.Unmarshal(body, &authResponse)

	if err != nil {
		return AuthnResponse{}, err
	}

	c.Log.WithField("status", authResponse.Status).Debug("Primary authentication response received")

	switch authResponse.Status {
	case StatusPasswordExpired:
		return authResponse, ErrPasswordExpired
	case StatusLockedOut:
		return authResponse, ErrAccountLockedOut
	case StatusMfaEnroll:
		return authResponse, ErrMfaEnrollRequired
	}

	return authResponse, nil
}

func errorSummary(body []byte) string {
	var oktaError apiError

	if json.Unmarshal(body, &oktaError) == nil && oktaError.ErrorSummary != "" {
		return oktaError.ErrorSummary
	}

	return "no error summary in response"
}
