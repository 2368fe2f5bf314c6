package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goatherd/ibex/cli"
)

func listAppsCmd(cmd *cobra.Command, args []string) error {
	links, err := cli.ListAwsApps()

	if err != nil {
		return err
	}

	for _, link := range links {
		fmt.Printf("    %s\t%s\n", link.Label, link.LinkURL)
	}
	fmt.Println()

	return nil
}
