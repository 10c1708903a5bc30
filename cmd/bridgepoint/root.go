package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "bridgepoint",
	Short:         "Bridgepoint is the member and mentorship program portal.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setCommandExecutionContext(commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: commandUsesStructuredLogging(cmd),
		})
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, usersCmd, invitesCmd)
}
