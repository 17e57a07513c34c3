/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mautops/approval-router/internal/database"
	"github.com/mautops/approval-router/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Export or import approval types and workflow templates as YAML",
}

// openBackupService 连接数据库并创建备份服务
func openBackupService(cmd *cobra.Command) (*service.BackupService, func(), error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, nil, err
	}
	svc := service.NewBackupService(db, cfg.Backup.Dir, logrus.StandardLogger())
	return svc, func() { database.Close(db) }, nil
}

var templatesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all approval types and workflow templates to a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openBackupService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		bundle, err := svc.Export(context.Background())
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			file, err := os.Create(path)
			if err != nil {
				return err
			}
			defer file.Close()
			out = file
		}
		return service.WriteBundle(out, bundle)
	},
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge approval types and workflow templates from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		bundle, err := service.ReadBundle(file)
		if err != nil {
			return err
		}

		svc, closeDB, err := openBackupService(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		operator, _ := cmd.Flags().GetInt64("operator")
		result, err := svc.Import(context.Background(), operator, bundle)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "approval types: %d created, %d updated\nworkflows: %d created, %d updated\n",
			result.TypesCreated, result.TypesUpdated, result.WorkflowsCreated, result.WorkflowsUpdated)
		return nil
	},
}

func init() {
	templatesExportCmd.Flags().String("out", "", "Output file (default: stdout)")
	templatesImportCmd.Flags().Int64("operator", 0, "User id recorded as creator of imported workflows")
	templatesCmd.AddCommand(templatesExportCmd, templatesImportCmd)
	rootCmd.AddCommand(templatesCmd)
}
