package aws

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"

	"github.com/goatherd/ibex/saml"
)

// DefaultDurationMinutes is the credential lifetime requested when no
// session duration is configured.
const DefaultDurationMinutes = 120

// Credential is one set of temporary AWS credentials minted through
// AssumeRoleWithSAML.
type Credential struct {
	AccessKeyID     string    `json:"accessKeyId"`
	SecretAccessKey string    `json:"secretAccessKey"`
	SessionToken    string    `json:"sessionToken"`
	Expiration      time.Time `json:"expiration"`
	RoleArn         string    `json:"roleArn"`
}

// RoleAssumptionError wraps an STS fault, identifying the role that
// could not be assumed. Role assumption failures are not retried.
type RoleAssumptionError struct {
	RoleArn string
	Err     error
}

func (e *RoleAssumptionError) Error() string {
	return fmt.Sprintf("could not assume role %s: %v", e.RoleArn, e.Err)
}

func (e *RoleAssumptionError) Unwrap() error {
	return e.Err
}

// AssumeRole exchanges a SAML assertion for temporary credentials
// scoped to roleArn. AssumeRoleWithSAML does not require caller
// identity, so the STS client is built with anonymous credentials; the
// region is only needed for client construction.
func AssumeRole(login saml.LoginData, roleArn string, region string, durationMinutes int64) (Credential, error) {
	principalArn, err := login.PrincipalFor(roleArn)

	if err != nil {
		return Credential{}, err
	}

	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}

	stsSession := session.Must(session.NewSession(
		aws.NewConfig().
			WithRegion(region).
			WithCredentials(credentials.AnonymousCredentials),
	))
	stsClient := sts.New(stsSession)

	input := sts.AssumeRoleWithSAMLInput{
		DurationSeconds: aws.Int64(durationMinutes * 60),
		PrincipalArn:    &principalArn,
		RoleArn:         &roleArn,
		SAMLAssertion:   &login.Assertion,
	}

	output, err := stsClient.AssumeRoleWithSAML(&input)

	if err != nil {
		return Credential{}, &RoleAssumptionError{RoleArn: roleArn, Err: err}
	}

	return Credential{
		AccessKeyID:     *output.Credentials.AccessKeyId,
		SecretAccessKey: *output.Credentials.SecretAccessKey,
		SessionToken:    *output.Credentials.SessionToken,
		Expiration:      *output.Credentials.Expiration,
		RoleArn:         roleArn,
	}, nil
}

// EnvironmentVariables maps a credential to the variables the AWS CLI
// and SDKs read from the environment.
func EnvironmentVariables(credential Credential) map[string]string {
	subject := make(map[string]string)

	subject["AWS_ACCESS_KEY_ID"] = credential.AccessKeyID
	subject["AWS_SECRET_ACCESS_KEY"] = credential.SecretAccessKey
	subject["AWS_SESSION_TOKEN"] = credential.SessionToken
	subject["AWS_SESSION_EXPIRATION"] = credential.Expiration.UTC().Format(time.RFC3339)

	return subject
}
