package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goatherd/ibex/aws"
	"github.com/goatherd/ibex/cli"
)

func shimCmd(cmd *cobra.Command, args []string) error {
	roleArn, err := cli.ResolveRole(args[0])

	if err != nil {
		return err
	}

	command := args[1:]

	credential, err := cli.CreateOrResumeSession(viper.GetString("aws.profile"), roleArn)

	if err != nil {
		return err
	}

	return cli.Exec(
		command,
		cli.EnrichedEnvironment(
			aws.EnvironmentVariables(credential),
		),
	)
}
