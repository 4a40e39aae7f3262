package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/archivist/internal/output"
	"github.com/Aman-CERP/archivist/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON, short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(w, version.Short())
				return err
			case asJSON:
				return output.New(w).JSON(version.GetInfo())
			default:
				_, err := fmt.Fprintln(w, version.String())
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build info as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")
	return cmd
}
