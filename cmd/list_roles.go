package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goatherd/ibex/cli"
)

func listRolesCmd(cmd *cobra.Command, args []string) error {
	roles, gotRoles := cli.RoleArnsFromCache()

	if !gotRoles {
		loginData, err := cli.GetLoginData()

		if err != nil {
			return err
		}

		cli.CacheRoleBindings(loginData)

		roles = loginData.RoleArns()
	}

	aliases, _ := getAliases()

	for _, alias := range aliases {
		fmt.Printf("    %s\n", alias)
	}

	for _, role := range roles {
		fmt.Printf("    %s\n", role)
	}
	fmt.Println()

	return nil
}

func getAliases() ([]string, error) {
	var aliases map[string]string

	sub := viper.Sub("alias")

	if sub == nil {
		return []string{}, nil
	}

	err := sub.Unmarshal(&aliases)

	if err != nil {
		return []string{}, err
	}

	keys := []string{}

	for key := range aliases {
		keys = append(keys, key)
	}

	return keys, nil
}
