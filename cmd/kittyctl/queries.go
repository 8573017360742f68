package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kittycore/pkg/domain"
)

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a creature, its genome and owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				return a.printCreature(cmd, s, id)
			})
		},
	}
}

func (a *app) statsCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print registry totals, or one owner's holdings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				total, err := s.service.TotalCount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "total=%d\n", total)
				if owner == "" {
					return nil
				}
				n, err := s.service.OwnedCount(ctx, domain.Identity(owner))
				if err != nil {
					return err
				}
				creatures, err := s.service.CreaturesOwnedBy(ctx, domain.Identity(owner))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "owner=%s owned=%d\n", owner, n)
				for _, c := range creatures {
					fmt.Fprintf(out, "  id=%d genome=%s\n", c.ID, c.Genome)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity to report on")
	return cmd
}
