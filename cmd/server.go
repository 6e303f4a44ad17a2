package cmd

import (
	"splitbook/mq/mq"
	"splitbook/web"

	"github.com/spf13/cobra"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  `This command starts the web server for the application.`,
		Run: func(cmd *cobra.Command, args []string) {
			isDev := cmd.Flags().Lookup("dev").Value.String() == "true"
			port := cmd.Flags().Lookup("port").Value.String()
			mqMode := cmd.Flags().Lookup("mq").Value.String()
			dbMode := cmd.Flags().Lookup("db").Value.String()

			// Start the web server
			web.Serve(web.ServiceConfig{
				IsDev:  isDev,
				Port:   port,
				MqMode: mq.Mode(mqMode),
				DbMode: dbMode,
			})
		},
	}

	cmd.Flags().Bool("dev", true, "Run in development mode (in-memory store)")
	cmd.Flags().String("port", "8080", "Port to run the web server on")
	cmd.Flags().String("mq", "go_chan", "Message queue mode (go_chan, rabbitmq, gcp_pub_sub)")
	cmd.Flags().String("db", "", "Database mode (mem, postgres); defaults to mem in dev")

	return cmd
}
