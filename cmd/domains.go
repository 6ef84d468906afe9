package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDomainsCmd creates the 'domains' subcommand, which lists the
// configured domains and their refresh settings.
func newDomainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "Lists configured domains",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			names := appInstance.Registry.Names()
			if len(names) == 0 {
				cmd.Println("no domains configured")
				return nil
			}
			for _, name := range names {
				cfg, err := appInstance.Registry.Get(name)
				if err != nil {
					cmd.Printf("%s\tINVALID: %v\n", name, err)
					continue
				}
				cmd.Println(fmt.Sprintf(
					"%s\tinterval=%s batch=%d attempts=%d source=%s output=%s",
					cfg.Name,
					cfg.RefreshInterval(),
					cfg.BatchSize,
					cfg.MaxAttempts,
					cfg.SourcePath,
					cfg.OutputPath,
				))
			}
			return nil
		},
	}
}
