package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/emrgen/impact/internal/cache"
	"github.com/emrgen/impact/internal/compress"
	"github.com/emrgen/impact/internal/config"
	"github.com/emrgen/impact/internal/service"
	"github.com/emrgen/impact/internal/store"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
	dbCmd.AddCommand(backfillEvidenceIDsCmd())
	dbCmd.AddCommand(sweepCmd())
	dbCmd.AddCommand(cleanupCmd())
}

func openStore() (*store.GormStore, error) {
	cfg := config.LoadConfig()
	config.SetupLogging(cfg)

	return openConfiguredStore(cfg)
}

func openConfiguredStore(cfg *config.Config) (*store.GormStore, error) {
	db, err := config.GetDb(cfg)
	if err != nil {
		return nil, err
	}

	compressor, err := compress.ByName(cfg.Compression)
	if err != nil {
		return nil, err
	}

	return store.NewGormStore(db, compressor), nil
}

// openMaintenance builds the maintenance service with the configured sweep
// grace and, when redis is configured, the article cache to flush.
func openMaintenance(ctx context.Context) (*service.MaintenanceService, error) {
	cfg := config.LoadConfig()
	config.SetupLogging(cfg)

	s, err := openConfiguredStore(cfg)
	if err != nil {
		return nil, err
	}

	var articleCache cache.ArticleCache
	if cfg.Redis.Addr != "" {
		if articleCache, err = cache.NewRedis(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}

	return service.NewMaintenanceService(s, articleCache, cfg.Jobs.SweepGrace), nil
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openStore()
			if err != nil {
				logrus.Error(err)
				return
			}
			if err := s.Migrate(); err != nil {
				logrus.Error(err)
				return
			}
			color.Green("database migrated")
		},
	}

	return command
}

func backfillEvidenceIDsCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "backfill-evidence-ids",
		Short: "move embedded evidence of old impacts into evidence rows",
		Run: func(cmd *cobra.Command, args []string) {
			maintenance, err := openMaintenance(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}

			report, err := maintenance.BackfillEvidenceIDs(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Scanned", "Migrated", "Evidence Created", "Failed"})
			table.Append([]string{
				strconv.Itoa(report.Scanned),
				strconv.Itoa(report.Migrated),
				strconv.Itoa(report.EvidenceCreated),
				strconv.Itoa(report.Failed),
			})
			table.Render()

			if report.Failed > 0 {
				color.Yellow("%d impacts could not be migrated, see the log", report.Failed)
			}
		},
	}

	return command
}

func sweepCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "sweep",
		Short: "delete impacts, evidence and history left behind by failed analyses",
		Run: func(cmd *cobra.Command, args []string) {
			maintenance, err := openMaintenance(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}

			report, err := maintenance.SweepOrphans(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Impacts", "Evidence", "History"})
			table.Append([]string{
				strconv.FormatInt(report.Impacts, 10),
				strconv.FormatInt(report.Evidence, 10),
				strconv.FormatInt(report.History, 10),
			})
			table.Render()
		},
	}

	return command
}

func cleanupCmd() *cobra.Command {
	var yes bool

	command := &cobra.Command{
		Use:   "cleanup",
		Short: "delete every article, impact, evidence and history entry",
		Run: func(cmd *cobra.Command, args []string) {
			if !yes {
				color.Red("cleanup deletes all stored data, rerun with --yes to confirm")
				return
			}

			maintenance, err := openMaintenance(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}

			if err := maintenance.Cleanup(context.Background()); err != nil {
				logrus.Error(err)
				return
			}
			fmt.Println("all data deleted")
		},
	}

	command.Flags().BoolVar(&yes, "yes", false, "confirm deleting all data")

	return command
}
