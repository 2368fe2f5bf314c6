package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goatherd/ibex/cli"
	"github.com/goatherd/ibex/format"
)

func printCredentialsCmd(cmd *cobra.Command, args []string) error {
	roleArn, err := cli.ResolveRole(args[0])

	if err != nil {
		return err
	}

	credential, err := cli.CreateOrResumeSession(viper.GetString("aws.profile"), roleArn)

	if err != nil {
		return err
	}

	output, err := format.Credentials(viper.GetString("output.format"), credential)

	if err != nil {
		return err
	}

	fmt.Print(output)

	return nil
}
