package main

import (
	"github.com/spf13/cobra"

	"github.com/verbi-app/verbi/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if cc.Flags.JSON {
				return printJSON(cc.Out, cc.Cfg)
			}

			return config.RenderEffective(cc.Cfg, cc.CfgPath, cc.Out)
		},
	})

	return cmd
}
