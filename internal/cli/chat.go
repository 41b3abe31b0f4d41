package cli

import (
	"github.com/spf13/cobra"

	"github.com/saleswire/server/internal/transport/repl"
)

var chatCmd = &cobra.Command{
	Use:          "chat",
	Short:        "Talk to the sales data assistant in your terminal",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return repl.NewSession(a.engine).Run(cmd.Context())
	},
}
