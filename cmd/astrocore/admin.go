package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"astrocore/internal/backup"
	"astrocore/internal/blob"
	"astrocore/internal/seed"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(*cobra.Command, []string) error {
			// Opening a SQL store applies any pending migrations.
			_, closeStore, err := a.openService()
			if err != nil {
				return err
			}
			closeStore()
			_, _ = fmt.Fprintf(a.stdout, "schema up to date (%s)\n", a.cfg.Storage.Driver)
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var opts seed.Options
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample planets and scientists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := a.openService()
			if err != nil {
				return err
			}
			defer closeStore()
			sum, err := seed.Run(cmd.Context(), svc, opts)
			if err != nil {
				return err
			}
			if opts.Reset {
				_, _ = fmt.Fprintf(a.stdout, "removed %d scientists, %d planets\n", sum.DeletedScientists, sum.DeletedPlanets)
			}
			_, _ = fmt.Fprintf(a.stdout, "seeded %d planets, %d scientists, %d missions\n", sum.Planets, sum.Scientists, sum.Missions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "Delete existing scientists and planets first")
	cmd.Flags().BoolVar(&opts.Missions, "missions", false, "Create one sample mission per scientist")
	return cmd
}

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage JSON snapshots in the blob store",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Write a snapshot of every table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := a.openService()
			if err != nil {
				return err
			}
			defer closeStore()
			blobs, err := blob.Open(cmd.Context(), a.cfg.Blob)
			if err != nil {
				return err
			}
			info, err := backup.NewManager(svc.Store(), blobs, nil).Create(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("backup written", "key", info.Key, "bytes", info.Size, "driver", string(blobs.Driver()))
			_, _ = fmt.Fprintln(a.stdout, info.Key)
			return nil
		},
	}

	var prefix string
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			blobs, err := blob.Open(cmd.Context(), a.cfg.Blob)
			if err != nil {
				return err
			}
			items, err := backup.NewManager(nil, blobs, nil).List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "KEY\tBYTES\tMODIFIED")
			for _, item := range items {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", item.Key, item.Size, item.LastModified.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&prefix, "prefix", backup.DefaultPrefix, "Key prefix to list")

	restore := &cobra.Command{
		Use:   "restore <key>",
		Short: "Replace every record with the snapshot stored at key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := a.openService()
			if err != nil {
				return err
			}
			defer closeStore()
			blobs, err := blob.Open(cmd.Context(), a.cfg.Blob)
			if err != nil {
				return err
			}
			snap, err := backup.NewManager(svc.Store(), blobs, nil).Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.logger.Info("backup restored", "key", args[0], "taken_at", snap.TakenAt,
				"scientists", len(snap.Scientists), "planets", len(snap.Planets), "missions", len(snap.Missions))
			_, _ = fmt.Fprintf(a.stdout, "restored %d scientists, %d planets, %d missions from %s\n",
				len(snap.Scientists), len(snap.Planets), len(snap.Missions), args[0])
			return nil
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			blobs, err := blob.Open(cmd.Context(), a.cfg.Blob)
			if err != nil {
				return err
			}
			removed, err := backup.NewManager(nil, blobs, nil).Prune(cmd.Context(), keep)
			for _, key := range removed {
				_, _ = fmt.Fprintln(a.stdout, key)
			}
			if err != nil {
				return err
			}
			a.logger.Info("backups pruned", "removed", len(removed), "kept", keep)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 10, "Number of newest snapshots to keep")

	cmd.AddCommand(create, list, restore, prune)
	return cmd
}
