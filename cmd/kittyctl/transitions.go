package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kittycore/pkg/domain"
)

func (a *app) createCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a new creature for the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				id, err := s.service.Create(cmd.Context(), domain.Identity(caller))
				if err != nil {
					return err
				}
				return a.printCreature(cmd, s, id)
			})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "Identity that will own the creature")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func (a *app) breedCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "breed <father> <mother>",
		Short: "Breed two existing creatures into a new one owned by the caller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			father, err := parseID(args[0])
			if err != nil {
				return err
			}
			mother, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(s *session) error {
				id, err := s.service.Breed(cmd.Context(), domain.Identity(caller), father, mother)
				if err != nil {
					return err
				}
				return a.printCreature(cmd, s, id)
			})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "Identity that will own the child")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func parseID(s string) (domain.EntityID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid creature id %q: %w", s, err)
	}
	return domain.EntityID(n), nil
}

func (a *app) printCreature(cmd *cobra.Command, s *session, id domain.EntityID) error {
	c, err := s.service.Creature(cmd.Context(), id)
	if err != nil {
		return err
	}
	owner, err := s.service.OwnerOf(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "id=%d genome=%s owner=%s\n", c.ID, c.Genome, owner)
	return nil
}
