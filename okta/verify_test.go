package okta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func verifyServer(t *testing.T, responses []string, requestCount *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if *requestCount >= len(responses) {
			t.Errorf("Got %d verification requests, expected at most %d", *requestCount+1, len(responses))
			w.WriteHeader(500)
			return
		}

		fmt.Fprint(w, responses[*requestCount])
		*requestCount++
	}))
}

func pushFactor(server *httptest.Server) Factor {
	return Factor{
		ID:         "opf1",
		FactorType: FactorTypePush,
		Provider:   "OKTA",
		Links:      factorLinks{Verify: apiLink{Href: server.URL + "/api/v1/authn/factors/opf1/verify"}},
	}
}

// advancePolls unblocks the poll loop's sleeps without real delays.
func advancePolls(clock clockwork.FakeClock, count int, interval time.Duration) {
	go func() {
		for i := 0; i < count; i++ {
			clock.BlockUntil(1)
			clock.Advance(interval)
		}
	}()
}

func TestVerifyPushPollsUntilSuccess(t *testing.T) {
	requestCount := 0
	challenged := []int{}

	server := verifyServer(t, []string{
		`{"status": "MFA_CHALLENGE", "factorResult": "WAITING", "_embedded": {"factor": {"_embedded": {"challenge": {"correctAnswer": 82}}}}}`,
		`{"status": "MFA_CHALLENGE", "factorResult": "WAITING"}`,
		`{"status": "SUCCESS", "sessionToken": "llama-session"}`,
	}, &requestCount)
	defer server.Close()

	client, _ := NewClient(server.URL)
	fakeClock := clockwork.NewFakeClock()
	client.Clock = fakeClock
	advancePolls(fakeClock, 2, client.PollInterval)

	response, err := client.VerifyPush(context.Background(), pushFactor(server), "state-llama", func(answer int) {
		challenged = append(challenged, answer)
	})

	if err != nil {
		t.Log("---------------")
		t.Log("Got an error from a push verification that should succeed")
		t.Errorf("Error: %v", err)
	}

	if response.SessionToken != "llama-session" {
		t.Log("---------------")
		t.Logf("Expected session token 'llama-session', got '%s'", response.SessionToken)
		t.Fail()
	}

	if requestCount != 3 {
		t.Log("---------------")
		t.Log("Two WAITING results should mean exactly two re-polls")
		t.Logf("Expected 3 requests, got %d", requestCount)
		t.Fail()
	}

	if len(challenged) != 1 || challenged[0] != 82 {
		t.Log("---------------")
		t.Log("The number challenge should be surfaced exactly once")
		t.Logf("Got: %v", challenged)
		t.Fail()
	}
}

func TestVerifyPushTerminalOnTimeout(t *testing.T) {
	requestCount := 0

	server := verifyServer(t, []string{
		`{"status": "MFA_CHALLENGE", "factorResult": "WAITING"}`,
		`{"status": "MFA_CHALLENGE", "factorResult": "TIMEOUT"}`,
	}, &requestCount)
	defer server.Close()

	client, _ := NewClient(server.URL)
	fakeClock := clockwork.NewFakeClock()
	client.Clock = fakeClock
	advancePolls(fakeClock, 1, client.PollInterval)

	_, err := client.VerifyPush(context.Background(), pushFactor(server), "state-llama", nil)

	var verification *MfaVerificationError

	if !errors.As(err, &verification) {
		t.Log("---------------")
		t.Log("A TIMEOUT factor result should fail with MfaVerificationError")
		t.Logf("Got: %v", err)
		t.Fail()
	} else if verification.FactorResult != FactorResultTimeout {
		t.Log("---------------")
		t.Logf("Expected factor result TIMEOUT, got %s", verification.FactorResult)
		t.Fail()
	}

	if requestCount != 2 {
		t.Log("---------------")
		t.Log("A terminal result must stop the poll loop immediately")
		t.Logf("Expected 2 requests, got %d", requestCount)
		t.Fail()
	}
}

func TestVerifyPushRejected(t *testing.T) {
	requestCount := 0

	server := verifyServer(t, []string{
		`{"status": "MFA_CHALLENGE", "factorResult": "REJECTED"}`,
	}, &requestCount)
	defer server.Close()

	client, _ := NewClient(server.URL)

	_, err := client.VerifyPush(context.Background(), pushFactor(server), "state-llama", nil)

	var verification *MfaVerificationError

	if !errors.As(err, &verification) || verification.FactorResult != FactorResultRejected {
		t.Log("---------------")
		t.Log("A REJECTED factor result should fail with MfaVerificationError")
		t.Logf("Got: %v", err)
		t.Fail()
	}
}

func TestVerifyPushCancellation(t *testing.T) {
	requestCount := 0

	server := verifyServer(t, []string{
		`{"status": "MFA_CHALLENGE", "factorResult": "WAITING"}`,
	}, &requestCount)
	defer server.Close()

	client, _ := NewClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.VerifyPush(ctx, pushFactor(server), "state-llama", nil)

	if err == nil || !errors.Is(err, context.Canceled) {
		t.Log("---------------")
		t.Log("A cancelled context should stop the poll loop with an error")
		t.Logf("Got: %v", err)
		t.Fail()
	}
}

func TestVerifyTotp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "SUCCESS", "sessionToken": "llama-session"}`)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)

	factor := Factor{
		ID:         "ost1",
		FactorType: FactorTypeTotp,
		Provider:   "GOOGLE",
		Links:      factorLinks{Verify: apiLink{Href: server.URL + "/api/v1/authn/factors/ost1/verify"}},
	}

	response, err := client.VerifyTotp(factor, "state-llama", "123456")

	if err != nil {
		t.Log("---------------")
		t.Errorf("Got error: %v", err)
	}

	if response.SessionToken != "llama-session" {
		t.Log("---------------")
		t.Logf("Expected session token 'llama-session', got '%s'", response.SessionToken)
		t.Fail()
	}
}

func TestVerifyTotpWrongCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
		fmt.Fprint(w, `{"errorSummary": "Invalid Passcode/Answer"}`)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)

	factor := Factor{
		ID:         "ost1",
		FactorType: FactorTypeTotp,
		Links:      factorLinks{Verify: apiLink{Href: server.URL + "/api/v1/authn/factors/ost1/verify"}},
	}

	_, err := client.VerifyTotp(factor, "state-llama", "000000")

	if !errors.Is(err, ErrInvalidPassCode) {
		t.Log("---------------")
		t.Log("A 403 during TOTP verification should map to ErrInvalidPassCode")
		t.Logf("Got: %v", err)
		t.Fail()
	}
}
