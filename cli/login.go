package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/goatherd/ibex/cache"
	"github.com/goatherd/ibex/okta"
	"github.com/goatherd/ibex/output"
	"github.com/goatherd/ibex/saml"
)

const maxLoginRetries = 3

// AuthenticationResult is the terminal outcome of one orchestrated
// authentication flow. Never mutated after return.
type AuthenticationResult struct {
	Domain        string
	SessionToken  string
	MfaFactorUsed string
	Authenticated bool
}

// CredentialSink receives the password-clearing side effect of a failed
// authentication. Whatever backs it, an expired or rejected password
// must never survive in storage; the stored username is left alone.
type CredentialSink interface {
	ClearPassword(username string)
}

type cachePasswordSink struct{}

func (cachePasswordSink) ClearPassword(username string) {
	cache.Remove(passwordCacheKey(username))
	cache.Export()
}

func passwordCacheKey(username string) string {
	return fmt.Sprintf("okta:password:%s:%s", viper.GetString("okta.domain"), username)
}

func samlResponseCacheKey() string {
	return fmt.Sprintf("okta:samlResponse:%s:%s", viper.GetString("okta.domain"), viper.GetString("okta.username"))
}

// AuthenticateUser runs primary authentication and, when Okta demands
// it, one MFA verification. Success yields an authenticated result with
// the session token. Password-expired and invalid-credential states are
// typed errors (after clearing any stored password through the sink);
// every other failure is an unauthenticated result without an error, so
// callers can prompt for credentials again.
func AuthenticateUser(client *okta.Client, username string, password string, preferredMfaType string, sink CredentialSink) (AuthenticationResult, error) {
	result := AuthenticationResult{Domain: viper.GetString("okta.domain")}

	authResponse, err := client.Authenticate(username, password)

	if err != nil {
		if errors.Is(err, okta.ErrInvalidCredentials) || errors.Is(err, okta.ErrPasswordExpired) {
			sink.ClearPassword(username)
			return result, err
		}

		if errors.Is(err, okta.ErrAccountLockedOut) || errors.Is(err, okta.ErrMfaEnrollRequired) {
			return result, err
		}

		output.ErrorPrintf("Authentication failed: %v\n", err)
		return result, nil
	}

	switch authResponse.Status {
	case okta.StatusSuccess:
		result.SessionToken = authResponse.SessionToken
		result.Authenticated = true

	case okta.StatusMfaRequired:
		factor, err := okta.ResolveFactor(authResponse.Factors(), preferredMfaType, chooseFactor)

		if err != nil {
			return result, err
		}

		verified, err := verifyFactor(client, factor, authResponse.StateToken)

		if err != nil {
			output.ErrorPrintf("%v\n", err)
			return result, nil
		}

		result.SessionToken = verified.SessionToken
		result.MfaFactorUsed = factor.FactorType
		result.Authenticated = true

	default:
		// Unknown statuses deliberately map to a plain unauthenticated
		// result; the status is surfaced so operators can see what Okta
		// actually said.
		log.WithField("status", authResponse.Status).Warn("Unhandled authentication status from Okta")
		output.ErrorPrintf("Okta returned an unhandled authentication status (%s)\n", authResponse.Status)
	}

	return result, nil
}

// verifyFactor dispatches to the verifier for the factor type. The set
// is closed: push and TOTP, nothing else.
func verifyFactor(client *okta.Client, factor okta.Factor, stateToken string) (okta.AuthnResponse, error) {
	switch factor.FactorType {
	case okta.FactorTypePush:
		timeout := time.Duration(viper.GetInt("login.timeout")) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		output.ErrorPrintln("Waiting for approval of the push notification...")

		return client.VerifyPush(ctx, factor, stateToken, func(answer int) {
			output.ErrorPrintf("Number challenge: tap %d in %s\n", answer, okta.ProviderName(factor.Provider))
		})

	case okta.FactorTypeTotp:
		return promptTotp(
			func(passCode string) (okta.AuthnResponse, error) {
				return client.VerifyTotp(factor, stateToken, passCode)
			},
			func() (string, error) {
				fmt.Fprintf(os.Stderr, "MFA token (from %s): ", okta.ProviderName(factor.Provider))
				return getLine()
			},
		)
	}

	return okta.AuthnResponse{}, &okta.UnsupportedFactorError{FactorType: factor.FactorType}
}

// promptTotp loops prompt → submit until Okta accepts a pass code or
// fails for some reason other than a wrong code. The wrong-code path is
// the only retried one, and it is unbounded: the user may keep trying.
func promptTotp(verify func(passCode string) (okta.AuthnResponse, error), prompt func() (string, error)) (okta.AuthnResponse, error) {
	for {
		passCode, err := prompt()

		if err != nil {
			return okta.AuthnResponse{}, err
		}

		authResponse, err := verify(passCode)

		if errors.Is(err, okta.ErrInvalidPassCode) {
			output.ErrorPrintln("Sorry, that code wasn't accepted. Try again.")
			continue
		}

		return authResponse, err
	}
}

// login drives interactive authentication, re-prompting on bad
// credentials up to maxLoginRetries. Each attempt gets a fresh client
// (and with it a fresh cookie jar); the client of the successful
// attempt is returned for the SAML retrieval that follows.
func login() (*okta.Client, AuthenticationResult, error) {
	sink := cachePasswordSink{}
	preferredMfaType := viper.GetString("okta.mfa_type")

	var result AuthenticationResult

	for retries := 1; ; retries++ {
		client, err := okta.NewClient(viper.GetString("okta.domain"))

		if err != nil {
			return nil, result, err
		}

		username, password, err := promptCredentials()

		if err != nil {
			return nil, result, err
		}

		result, err = AuthenticateUser(client, username, password, preferredMfaType, sink)

		if err == nil && result.Authenticated {
			rememberPassword(username, password)
			return client, result, nil
		}

		retryable := err == nil || errors.Is(err, okta.ErrInvalidCredentials)

		if !retryable || retries >= maxLoginRetries {
			return client, result, err
		}

		output.ErrorPrintln("Sorry, try again.")
	}
}

func promptCredentials() (string, string, error) {
	username := viper.GetString("okta.username")

	if username == "" {
		fmt.Fprint(os.Stderr, "username: ")

		var err error
		username, err = getLine()

		if err != nil {
			return "", "", err
		}
	}

	if viper.GetBool("okta.remember_password") {
		if password, ok := cache.Check(passwordCacheKey(username)).(string); ok {
			return username, password, nil
		}
	}

	password, err := getPassword(fmt.Sprintf("Okta password for %s", username))

	return username, password, err
}

func rememberPassword(username string, password string) {
	if !viper.GetBool("okta.remember_password") || viper.GetBool("cache.no_cache") {
		return
	}

	cache.WriteDefault(passwordCacheKey(username), password)
}

func samlFromCache() (string, bool) {
	if viper.GetBool("cache.no_cache") {
		return "", false
	}

	payload, ok := cache.Check(samlResponseCacheKey()).(string)

	return payload, ok
}

// GetLoginData produces the parsed SAML login data, from cache when a
// payload is still valid, otherwise by running the full authentication
// flow and scraping a fresh assertion.
func GetLoginData() (saml.LoginData, error) {
	if payload, ok := samlFromCache(); ok {
		loginData, err := saml.CreateLoginData(payload)

		if err == nil {
			return loginData, nil
		}

		log.WithError(err).Warn("Cached SAML payload is unusable, re-authenticating")
	}

	if viper.GetBool("cache.cache_only") {
		return saml.LoginData{}, errors.New("could not find a SAML session in cache and --cache-only specified")
	}

	client, result, err := login()

	if err != nil {
		return saml.LoginData{}, err
	}

	if !result.Authenticated {
		return saml.LoginData{}, errors.New("authentication failed")
	}

	appHref := viper.GetString("okta.app_url")

	if appHref == "" {
		appHref, err = discoverAppHref(client, result.SessionToken)

		if err != nil {
			return saml.LoginData{}, err
		}
	}

	samlData, err := client.GetSamlData(result.SessionToken, appHref)

	if err != nil {
		return saml.LoginData{}, err
	}

	loginData, err := saml.CreateLoginData(samlData.Assertion)

	if err != nil {
		return saml.LoginData{}, err
	}

	if !viper.GetBool("cache.no_cache") {
		cache.Write(samlResponseCacheKey(), samlData.Assertion, time.Until(loginData.NotAfter))
		cache.Export()
	}

	return loginData, nil
}

// ListAwsApps authenticates and lists the AWS federation apps assigned
// to the user.
func ListAwsApps() ([]okta.AppLink, error) {
	client, result, err := login()

	if err != nil {
		return nil, err
	}

	if !result.Authenticated {
		return nil, errors.New("authentication failed")
	}

	return client.AppLinks(result.SessionToken)
}

// discoverAppHref finds the AWS federation app when okta.app_url isn't
// configured. One app is used as-is; several get an interactive pick.
func discoverAppHref(client *okta.Client, sessionToken string) (string, error) {
	links, err := client.AppLinks(sessionToken)

	if err != nil {
		return "", err
	}

	if len(links) == 0 {
		return "", errors.New("no AWS apps are assigned to your Okta user; set okta.app_url explicitly")
	}

	if len(links) == 1 {
		return links[0].LinkURL, nil
	}

	fmt.Fprintln(os.Stderr, "Available AWS apps:")

	for index, link := range links {
		fmt.Fprintf(os.Stderr, "  %d) %s\n", index+1, link.Label)
	}

	fmt.Fprint(os.Stderr, "App: ")
	answer, err := getLine()

	if err != nil {
		return "", err
	}

	var selection int
	_, err = fmt.Sscanf(answer, "%d", &selection)

	if err != nil || selection < 1 || selection > len(links) {
		return "", fmt.Errorf("'%s' is not an app number", answer)
	}

	return links[selection-1].LinkURL, nil
}
