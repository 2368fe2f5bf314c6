package okta

import (
	"errors"
	"fmt"
)

// The factor types this tool knows how to verify. Anything else can be
// listed but not selected.
const (
	FactorTypePush = "push"
	FactorTypeTotp = "token:software:totp"
)

// FactorSupported reports whether a verifier exists for the factor type.
func FactorSupported(factorType string) bool {
	switch factorType {
	case FactorTypePush, FactorTypeTotp:
		return true
	}

	return false
}

// ResolveFactor picks the factor to verify. A preferred type that
// matches a supported candidate is selected automatically; otherwise
// choose is called with the candidate list and must return an index into
// it. Choosing an unsupported factor is rejected with a typed error.
func ResolveFactor(factors []Factor, preferredType string, choose func([]Factor) (int, error)) (Factor, error) {
	if len(factors) == 0 {
		return Factor{}, errors.New("no MFA factors are enrolled for this account")
	}

	if preferredType != "" {
		for _, factor := range factors {
			if factor.FactorType == preferredType && FactorSupported(factor.FactorType) {
				return factor, nil
			}
		}
	}

	if len(factors) == 1 {
		only := factors[0]

		if !FactorSupported(only.FactorType) {
			return Factor{}, &UnsupportedFactorError{FactorType: only.FactorType}
		}

		return only, nil
	}

	index, err := choose(factors)

	if err != nil {
		return Factor{}, err
	}

	if index < 0 || index >= len(factors) {
		return Factor{}, fmt.Errorf("factor selection %d is out of range", index)
	}

	chosen := factors[index]

	if !FactorSupported(chosen.FactorType) {
		return Factor{}, &UnsupportedFactorError{FactorType: chosen.FactorType}
	}

	return chosen, nil
}

// FactorDisplayName renders a factor for interactive selection lists.
func FactorDisplayName(factor Factor) string {
	switch factor.FactorType {
	case FactorTypePush:
		return fmt.Sprintf("Push notification (%s)", ProviderName(factor.Provider))
	case FactorTypeTotp:
		return fmt.Sprintf("TOTP code (%s)", ProviderName(factor.Provider))
	}

	return fmt.Sprintf("%s (%s) [unsupported]", factor.FactorType, ProviderName(factor.Provider))
}

// ProviderName maps Okta provider keys to the names users know them by.
func ProviderName(key string) string {
	switch key {
	case "GOOGLE":
		return "Google Authenticator"
	case "OKTA":
		return "Okta Verify"
	default:
		return key
	}
}
