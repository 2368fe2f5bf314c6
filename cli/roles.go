package cli

import (
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/goatherd/ibex/cache"
	"github.com/goatherd/ibex/saml"
)

const roleCacheKey = "aws:roles"

// CacheRoleBindings stores the user's role bindings so --list-roles can
// answer without a round trip. Serialised as "principal,role" strings,
// the same shape the assertion carries them in.
func CacheRoleBindings(login saml.LoginData) {
	if viper.GetBool("cache.no_cache") {
		return
	}

	data := []string{}

	for role, principal := range login.Bindings {
		data = append(data, principal+","+role)
	}

	sort.Strings(data)
	cache.WriteDefault(roleCacheKey, data)
}

// RoleArnsFromCache returns the cached role ARNs, if any.
func RoleArnsFromCache() ([]string, bool) {
	if viper.GetBool("cache.no_cache") {
		return nil, false
	}

	data, ok := cache.Check(roleCacheKey).([]string)

	if !ok {
		return nil, false
	}

	roles := []string{}

	for _, datum := range data {
		parts := strings.SplitN(datum, ",", 2)

		if len(parts) == 2 {
			roles = append(roles, parts[1])
		}
	}

	sort.Strings(roles)

	return roles, true
}
