package saml

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"
)

const roleAttributeName = "https://aws.amazon.com/SAML/Attributes/Role"

type samlResponse struct {
	Assertion samlAssertion `xml:"Assertion"`
}

type samlAssertion struct {
	Attributes []samlAssertionAttribute `xml:"AttributeStatement>Attribute"`
	Conditions samlAssertionConditions  `xml:"Conditions"`
}

type samlAssertionConditions struct {
	NotBefore    time.Time `xml:"NotBefore,attr"`
	NotOnOrAfter time.Time `xml:"NotOnOrAfter,attr"`
}

type samlAssertionAttribute struct {
	Name   string   `xml:"Name,attr"`
	Values []string `xml:"AttributeValue"`
}

// RoleNotAssignedError reports a role the user asked for but the
// assertion does not grant, along with the roles that are available.
type RoleNotAssignedError struct {
	RoleArn   string
	Available []string
}

func (e *RoleNotAssignedError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("role %s is not in the list of available roles for this user (no roles found in assertion)", e.RoleArn)
	}

	return fmt.Sprintf("role %s is not in the list of available roles for this user. Available roles:\n    %s",
		e.RoleArn, strings.Join(e.Available, "\n    "))
}

// LoginData is the parsed view of one SAML assertion: the role ARN →
// identity-provider ARN bindings and the assertion itself, base64-ready
// for STS.
type LoginData struct {
	Bindings  map[string]string
	Assertion string
	NotAfter  time.Time
}

// ExtractRoleBindings decodes a base64 SAML assertion and returns its
// AWS role bindings keyed by role ARN. Each AttributeValue of the AWS
// role attribute carries "idpArn,roleArn" (IDP first on the wire). Zero
// role attributes yields an empty map, not an error; an undecodable or
// non-XML body is fatal.
func ExtractRoleBindings(assertionBase64 string) (map[string]string, error) {
	response, err := decodeResponse(assertionBase64)

	if err != nil {
		return nil, err
	}

	return roleBindings(response), nil
}

// CreateLoginData parses a base64 SAML assertion into LoginData.
func CreateLoginData(assertionBase64 string) (LoginData, error) {
	response, err := decodeResponse(assertionBase64)

	if err != nil {
		return LoginData{}, err
	}

	return LoginData{
		Bindings:  roleBindings(response),
		Assertion: assertionBase64,
		NotAfter:  response.Assertion.Conditions.NotOnOrAfter,
	}, nil
}

func decodeResponse(assertionBase64 string) (samlResponse, error) {
	payload, err := base64.StdEncoding.DecodeString(assertionBase64)

	if err != nil {
		return samlResponse{}, fmt.Errorf("SAML assertion is not valid base64: %w", err)
	}

	var response samlResponse

	err = xml.Unmarshal(payload, &response)

	if err != nil {
		return samlResponse{}, fmt.Errorf("SAML assertion is not valid XML: %w", err)
	}

	return response, nil
}

func roleBindings(response samlResponse) map[string]string {
	bindings := map[string]string{}

	for _, attribute := range response.Assertion.Attributes {
		if attribute.Name != roleAttributeName {
			continue
		}

		for _, value := range attribute.Values {
			parts := strings.SplitN(value, ",", 2)

			if len(parts) == 2 {
				// IDP comes first and role second in the wire format.
				bindings[strings.TrimSpace(parts[1])] = strings.TrimSpace(parts[0])
			}
		}
	}

	return bindings
}

// PrincipalFor looks up the identity-provider ARN bound to a role.
func (login LoginData) PrincipalFor(roleArn string) (string, error) {
	principal, ok := login.Bindings[roleArn]

	if !ok {
		return "", &RoleNotAssignedError{RoleArn: roleArn, Available: login.RoleArns()}
	}

	return principal, nil
}

// RoleArns returns the bound role ARNs in stable order.
func (login LoginData) RoleArns() []string {
	roles := make([]string, 0, len(login.Bindings))

	for role := range login.Bindings {
		roles = append(roles, role)
	}

	sort.Strings(roles)

	return roles
}
