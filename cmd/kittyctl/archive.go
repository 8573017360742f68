package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kittycore/internal/core"
)

func (a *app) archiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Write a snapshot of the registry to the configured archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				blobs, err := a.openArchive(cmd.Context(), s.cfg.Archive)
				if err != nil {
					return fmt.Errorf("open %s archive: %w", s.cfg.Archive.Driver, err)
				}
				info, err := core.NewArchiver(blobs).Save(cmd.Context(), s.store)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "archived %s (%d bytes)\n", info.Key, info.Size)
				return nil
			})
		},
	}
}

func (a *app) restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace the registry with the latest archived snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				blobs, err := a.openArchive(cmd.Context(), s.cfg.Archive)
				if err != nil {
					return fmt.Errorf("open %s archive: %w", s.cfg.Archive.Driver, err)
				}
				info, err := core.NewArchiver(blobs).RestoreLatest(cmd.Context(), s.store)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", info.Key)
				return nil
			})
		},
	}
}
