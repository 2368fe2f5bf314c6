package okta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/url"

	"golang.org/x/net/html"
)

const maxManualRedirects = 10

// awsAppName is the Okta app name for the AWS federation application.
const awsAppName = "amazon_aws"

// SamlData is everything scraped from the SAML sign-in page: the
// base64-encoded assertion, the form's sign-in URL and the relay state.
type SamlData struct {
	Assertion  string
	SignInURL  string
	RelayState string
}

// AppLink is one entry from the Okta app links API.
type AppLink struct {
	Label   string `json:"label"`
	LinkURL string `json:"linkUrl"`
	AppName string `json:"appName"`
}

func (c *Client) sessionCookieRedirectURL(sessionToken string, redirectHref string) *url.URL {
	redirectURL := c.endpoint("/login/sessionCookieRedirect")

	query := url.Values{}
	query.Add("token", sessionToken)
	query.Add("redirectUrl", redirectHref)
	redirectURL.RawQuery = query.Encode()

	return redirectURL
}

// getFollowingRedirects issues a GET and follows redirects by hand, so
// the session cookie set by the redirect endpoint lands in the jar
// before the target is fetched.
func (c *Client) getFollowingRedirects(href string) ([]byte, error) {
	for hop := 0; hop < maxManualRedirects; hop++ {
		resp, err := c.httpClient.Get(href)

		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()

			if location == "" {
				return nil, fmt.Errorf("redirect from Okta carried no Location header (%s)", resp.Status)
			}

			current, err := url.Parse(href)

			if err != nil {
				return nil, err
			}

			next, err := url.Parse(location)

			if err != nil {
				return nil, err
			}

			href = current.ResolveReference(next).String()
			c.Log.WithField("location", href).Debug("Following redirect")
			continue
		}

		body, err := ioutil.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("could not fetch %s (%s)", href, resp.Status)
		}

		return body, nil
	}

	return nil, fmt.Errorf("gave up after %d redirects fetching %s", maxManualRedirects, href)
}

// sessionGet fetches target, establishing the Okta session first if
// this client hasn't yet. Session tokens are single-use, so the cookie
// redirect happens at most once per client; after that the sid cookie
// in the jar carries the session.
func (c *Client) sessionGet(sessionToken string, target *url.URL) ([]byte, error) {
	if c.sessionPrimed {
		return c.getFollowingRedirects(target.String())
	}

	body, err := c.getFollowingRedirects(c.sessionCookieRedirectURL(sessionToken, target.String()).String())

	if err == nil {
		c.sessionPrimed = true
	}

	return body, err
}

// GetSamlData exchanges a session token for the SAML sign-in form of the
// AWS app at appHref, scraping the assertion, sign-in URL and relay
// state out of the returned HTML.
func (c *Client) GetSamlData(sessionToken string, appHref string) (SamlData, error) {
	appURL, err := url.Parse(appHref)

	if err != nil {
		return SamlData{}, err
	}

	body, err := c.sessionGet(sessionToken, c.baseURL.ResolveReference(appURL))

	if err != nil {
		return SamlData{}, &InvalidSamlResponseError{Reason: err.Error()}
	}

	return extractSamlData(body)
}

// AppLinks lists the AWS federation apps assigned to the authenticated
// user. The app links endpoint authenticates with the sid cookie set by
// the session cookie redirect.
func (c *Client) AppLinks(sessionToken string) ([]AppLink, error) {
	body, err := c.sessionGet(sessionToken, c.endpoint("/api/v1/users/me/appLinks"))

	if err != nil {
		return nil, err
	}

	var links []AppLink

	err = json.Unmarshal(body, &links)

	if err != nil {
		return nil, fmt.Errorf("could not parse app links response: %w", err)
	}

	awsLinks := []AppLink{}

	for _, link := range links {
		if link.AppName == awsAppName {
			awsLinks = append(awsLinks, link)
		}
	}

	return awsLinks, nil
}

// extractSamlData tokenises the sign-in page looking for the hidden
// SAMLResponse and RelayState inputs and the enclosing form's action.
// Only those three fields matter; this is not a general HTML parser.
func extractSamlData(htmlDocument []byte) (SamlData, error) {
	tokeniser := html.NewTokenizer(bytes.NewBuffer(htmlDocument))

	var data SamlData
	var formAction string

	for {
		tokeniser.Next()
		token := tokeniser.Token()

		if token.Type == html.ErrorToken {
			break
		}

		if token.Type == html.StartTagToken && token.Data == "form" {
			formAction = attributeValue(token, "action")
		}

		if (token.Type == html.SelfClosingTagToken || token.Type == html.StartTagToken) && token.Data == "input" {
			switch attributeValue(token, "name") {
			case "SAMLResponse":
				data.Assertion = attributeValue(token, "value")
				data.SignInURL = formAction
			case "RelayState":
				data.RelayState = attributeValue(token, "value")
			}
		}
	}

	if data.Assertion == "" {
		return SamlData{}, &InvalidSamlResponseError{Reason: "no SAMLResponse field found in sign-in page"}
	}

	return data, nil
}

func attributeValue(token html.Token, name string) string {
	for _, attribute := range token.Attr {
		if attribute.Key == name {
			return attribute.Val
		}
	}

	return ""
}
