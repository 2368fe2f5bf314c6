package credstore

import "time"

// MinimumLifetime is the floor below which stored credentials are
// always renewed rather than resumed.
const MinimumLifetime = 15 * time.Minute

// silentResumeLifetime is the threshold above which stored credentials
// are resumed without asking.
const silentResumeLifetime = 60 * time.Minute

// RenewalDecision says what to do with a still-valid stored credential.
type RenewalDecision int

const (
	// Resume the stored credential without asking.
	Resume RenewalDecision = iota
	// Ask the user whether to renew; resuming is the default answer.
	Ask
	// Renew unconditionally.
	Renew
)

// Renewal applies the expiration policy to a credential's remaining
// lifetime: an hour or more resumes silently, between fifteen minutes
// and an hour asks, anything less renews.
func Renewal(remaining time.Duration) RenewalDecision {
	if remaining < MinimumLifetime {
		return Renew
	}

	if remaining < silentResumeLifetime {
		return Ask
	}

	return Resume
}
