package okta

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const signInPage = `<html><body>
  <form id="appForm" method="POST" action="https://signin.aws.amazon.com/saml">
    <input type="hidden" name="SAMLResponse" value="dGhlLWFzc2VydGlvbg=="/>
    <input type="hidden" name="RelayState" value="relay-llama"/>
  </form>
</body></html>`

func TestExtractSamlData(t *testing.T) {
	data, err := extractSamlData([]byte(signInPage))

	if err != nil {
		t.Log("---------------")
		t.Log("Failed to scrape the sign-in page at all!")
		t.Errorf("Got error: %s", err)
	}

	if data.Assertion != "dGhlLWFzc2VydGlvbg==" {
		t.Log("---------------")
		t.Log("Did not scrape the SAMLResponse value")
		t.Logf("Got: %s", data.Assertion)
		t.Fail()
	}

	if data.SignInURL != "https://signin.aws.amazon.com/saml" {
		t.Log("---------------")
		t.Log("Did not scrape the form action")
		t.Logf("Got: %s", data.SignInURL)
		t.Fail()
	}

	if data.RelayState != "relay-llama" {
		t.Log("---------------")
		t.Log("Did not scrape the RelayState value")
		t.Logf("Got: %s", data.RelayState)
		t.Fail()
	}
}

func TestExtractSamlDataMissingAssertion(t *testing.T) {
	_, err := extractSamlData([]byte(`<html><body><form action="/x"><input name="other"/></form></body></html>`))

	if _, ok := err.(*InvalidSamlResponseError); !ok {
		t.Log("---------------")
		t.Log("A page without a SAMLResponse field should be an InvalidSamlResponseError")
		t.Logf("Got: %v", err)
		t.Fail()
	}
}

func TestGetSamlData(t *testing.T) {
	var sawToken string

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/login/sessionCookieRedirect", func(w http.ResponseWriter, r *http.Request) {
		sawToken = r.URL.Query().Get("token")
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "session-llama"})
		http.Redirect(w, r, r.URL.Query().Get("redirectUrl"), http.StatusFound)
	})

	mux.HandleFunc("/app/amazon_aws/abc123/sso/saml", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sid")

		if err != nil || cookie.Value != "session-llama" {
			t.Error("The session cookie set by the redirect endpoint was not sent to the app")
		}

		fmt.Fprint(w, signInPage)
	})

	client, _ := NewClient(server.URL)
	data, err := client.GetSamlData("one-time-llama", "/app/amazon_aws/abc123/sso/saml")

	if err != nil {
		t.Log("---------------")
		t.Errorf("Got error: %v", err)
	}

	if sawToken != "one-time-llama" {
		t.Log("---------------")
		t.Log("The session token was not passed to the redirect endpoint")
		t.Logf("Got: %s", sawToken)
		t.Fail()
	}

	if data.Assertion != "dGhlLWFzc2VydGlvbg==" || data.RelayState != "relay-llama" {
		t.Log("---------------")
		t.Log("Did not scrape the SAML data from the app's sign-in page")
		t.Logf("Got: %+v", data)
		t.Fail()
	}
}

func TestGetSamlDataBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	_, err := client.GetSamlData("one-time-llama", "/app/amazon_aws/abc123/sso/saml")

	if _, ok := err.(*InvalidSamlResponseError); !ok {
		t.Log("---------------")
		t.Log("A non-success status should be an InvalidSamlResponseError")
		t.Logf("Got: %v", err)
		t.Fail()
	}
}

func TestAppLinks(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/login/sessionCookieRedirect", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "session-llama"})
		http.Redirect(w, r, r.URL.Query().Get("redirectUrl"), http.StatusFound)
	})

	mux.HandleFunc("/api/v1/users/me/appLinks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"label": "AWS Production", "linkUrl": "https://example.okta.com/home/amazon_aws/abc/1", "appName": "amazon_aws"},
			{"label": "Wiki", "linkUrl": "https://example.okta.com/home/wiki/def/2", "appName": "wiki"},
			{"label": "AWS Staging", "linkUrl": "https://example.okta.com/home/amazon_aws/ghi/3", "appName": "amazon_aws"}
		]`)
	})

	client, _ := NewClient(server.URL)
	links, err := client.AppLinks("one-time-llama")

	if err != nil {
		t.Log("---------------")
		t.Errorf("Got error: %v", err)
	}

	if len(links) != 2 {
		t.Log("---------------")
		t.Log("App links should be filtered to AWS apps")
		t.Logf("Got: %+v", links)
		t.Fail()
	}

	if len(links) == 2 && (links[0].Label != "AWS Production" || links[1].Label != "AWS Staging") {
		t.Log("---------------")
		t.Log("Did not keep the AWS app links in order")
		t.Logf("Got: %+v", links)
		t.Fail()
	}
}
