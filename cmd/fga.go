/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/approval-router/internal/auth"
	"github.com/spf13/cobra"
)

var fgaCmd = &cobra.Command{
	Use:   "fga",
	Short: "OpenFGA authorization helpers",
}

var fgaModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Print the OpenFGA authorization model (DSL)",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), auth.GetPermissionModel())
	},
}

var fgaGrantAdminCmd = &cobra.Command{
	Use:   "grant-admin <user-id>",
	Short: "Grant approval administration to a directory user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := auth.ParseUserID(args[0])
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !cfg.OpenFGA.Enabled {
			return fmt.Errorf("openfga is disabled, administrators are configured by realm role or workflow.default_approver_id")
		}

		client, err := auth.NewOpenFGAClient(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.SetRelation(ctx, userID, auth.RelationAdmin, auth.ObjectTypeSystem, auth.SystemObjectID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %d is now an approval administrator\n", userID)
		return nil
	},
}

func init() {
	fgaCmd.AddCommand(fgaModelCmd, fgaGrantAdminCmd)
	rootCmd.AddCommand(fgaCmd)
}
