package okta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
)

func (c *Client) verifyFactor(factor Factor, request verifyRequest) (AuthnResponse, error) {
	verifyBody, err := json.Marshal(request)

	if err != nil {
		return AuthnResponse{}, err
	}

	verifyHref := factor.Links.Verify.Href

	if verifyHref == "" {
		verifyHref = c.endpoint(fmt.Sprintf("/api/v1/authn/factors/%s/verify", factor.ID)).String()
	}

	resp, err := c.httpClient.Post(verifyHref, "application/json", bytes.NewBuffer(verifyBody))

	if err != nil {
		return AuthnResponse{}, err
	}

	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)

	if err != nil {
		return AuthnResponse{}, err
	}

	if resp.StatusCode == 403 {
		return AuthnResponse{}, ErrInvalidPassCode
	} else if resp.StatusCode >= 300 {
		return AuthnResponse{}, fmt.Errorf("MFA verification failed (%s): %s", resp.Status, errorSummary(body))
	}

	var authResponse AuthnResponse

	err = json.Unmarshal(body, &authResponse)

	if err != nil {
		return AuthnResponse{}, err
	}

	return authResponse, nil
}

// VerifyTotp submits one TOTP pass code. A 403 from Okta (wrong code)
// comes back as ErrInvalidPassCode so callers can prompt and resubmit.
func (c *Client) VerifyTotp(factor Factor, stateToken string, passCode string) (AuthnResponse, error) {
	return c.verifyFactor(factor, verifyRequest{StateToken: stateToken, PassCode: passCode})
}

// VerifyPush drives a push factor to a terminal result. Okta is polled:
// while the factor result is WAITING the same verify call is resubmitted
// after PollInterval. If Okta issues a number challenge, notify is
// called with the answer the user must tap before the next poll. The
// context bounds the loop; Okta's own challenge timeout is the usual
// terminator, surfaced as a TIMEOUT factor result.
func (c *Client) VerifyPush(ctx context.Context, factor Factor, stateToken string, notify func(answer int)) (AuthnResponse, error) {
	for {
		authResponse, err := c.verifyFactor(factor, verifyRequest{StateToken: stateToken})

		if err != nil {
			return authResponse, err
		}

		if authResponse.Status == StatusSuccess {
			return authResponse, nil
		}

		if authResponse.FactorResult != FactorResultWaiting {
			return authResponse, &MfaVerificationError{
				FactorResult: authResponse.FactorResult,
				Status:       authResponse.Status,
			}
		}

		if answer, ok := authResponse.ChallengeAnswer(); ok && notify != nil {
			notify(answer)
		}

		c.Log.Debug("Push factor still waiting, polling again")

		select {
		case <-ctx.Done():
			return authResponse, fmt.Errorf("gave up waiting for push verification: %w", ctx.Err())
		case <-c.Clock.After(c.PollInterval):
		}
	}
}
