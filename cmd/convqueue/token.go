package main

import (
	"fmt"

	"github.com/spf13/cobra"

	httpadapter "github.com/bnema/convqueue/internal/adapter/http"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Admin token helpers",
	}

	hash := &cobra.Command{
		Use:   "hash <token>",
		Short: "Print the bcrypt hash to put in http.adminTokenHash",
		Args:  cobra.ExactArgs(1),
		Annotations: map[string]string{
			"skipConfig": "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := httpadapter.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.AddCommand(hash)
	return cmd
}
