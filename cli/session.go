package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws/arn"
	"github.com/spf13/viper"

	"github.com/goatherd/ibex/aws"
	"github.com/goatherd/ibex/cache"
	"github.com/goatherd/ibex/credstore"
	"github.com/goatherd/ibex/output"
)

var notARoleErrorMessage = `'%s' is neither an IAM role ARN nor a configured alias.

Run 'ibex --list-roles' to see which roles and aliases you can use.`

// ResolveRole turns a role name into a role ARN, going through the
// configured aliases first.
func ResolveRole(roleName string) (string, error) {
	if viper.IsSet("alias." + roleName) {
		return viper.GetString("alias." + roleName), nil
	}

	if arn.IsARN(roleName) {
		return roleName, nil
	}

	return "", fmt.Errorf(notARoleErrorMessage, roleName)
}

// CreateOrResumeSession returns credentials for roleArn under
// profileName: stored credentials when the expiration policy allows,
// otherwise freshly minted ones via the full Okta → SAML → STS
// pipeline, which are then persisted for next time.
func CreateOrResumeSession(profileName string, roleArn string) (aws.Credential, error) {
	store, err := credstore.NewStore()

	if err != nil {
		return aws.Credential{}, err
	}

	if !viper.GetBool("cache.fresh_aws_session") {
		if credential := store.TryLoad(profileName); credential != nil && credential.RoleArn == roleArn {
			remaining := time.Until(credential.Expiration)

			switch credstore.Renewal(remaining) {
			case credstore.Resume:
				return *credential, nil
			case credstore.Ask:
				question := fmt.Sprintf("Credentials for profile '%s' expire in %s. Renew now?",
					profileName, remaining.Round(time.Minute))

				if !confirm(question, false) {
					return *credential, nil
				}
			}
		}
	}

	if viper.GetBool("cache.cache_only") {
		return aws.Credential{}, errors.New("no usable stored credentials and --cache-only specified")
	}

	loginData, err := GetLoginData()

	if err != nil {
		return aws.Credential{}, err
	}

	CacheRoleBindings(loginData)

	credential, err := aws.AssumeRole(loginData, roleArn, viper.GetString("aws.region"), viper.GetInt64("aws.session_duration"))

	if err != nil {
		return aws.Credential{}, err
	}

	err = store.Save(profileName, credential)

	if err != nil {
		// Credentials were minted; failing to persist them shouldn't
		// lose them, so warn and carry on.
		output.ErrorPrintf("Warning: couldn't store credentials for reuse: %v\n", err)
	}

	cache.Export()

	return credential, nil
}
