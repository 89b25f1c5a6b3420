package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"giveaway/internal/giveaway"
	"giveaway/internal/models"
	"giveaway/internal/transport"
)

var (
	simParticipants []string
	simNodes        int
	simCommit       time.Duration
	simReveal       time.Duration
	simOrganizer    string

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run one giveaway across several in-process nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer initLogger(verbose).Close()
			results, err := simulate(cmd.Context(), simParticipants, simNodes, simCommit, simReveal, simOrganizer)
			if err != nil {
				return err
			}
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "node-%d: winner %s seed %s\n", i, r.Winner, r.RandomSeed)
			}
			out, err := json.MarshalIndent(results[0], "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
)

func init() {
	simulateCmd.Flags().StringSliceVar(&simParticipants, "participants", []string{"A", "B", "C"}, "participants")
	simulateCmd.Flags().IntVar(&simNodes, "nodes", 3, "number of committing nodes")
	simulateCmd.Flags().DurationVar(&simCommit, "commit", 2*time.Second, "commit phase duration")
	simulateCmd.Flags().DurationVar(&simReveal, "reveal", 2*time.Second, "reveal phase duration")
	simulateCmd.Flags().StringVar(&simOrganizer, "organizer", "simulation", "organizer ID")
}

// simulate runs nodes coordinators of the same giveaway on one broker and
// checks that they agree on the winner.
func simulate(ctx context.Context, participants []string, nodes int, commit, reveal time.Duration, organizer string) ([]*models.GiveawayResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if nodes < 1 {
		return nil, fmt.Errorf("need at least one node, got %d", nodes)
	}
	broker := transport.NewBroker(nodes * 4)
	if err := broker.Start(ctx); err != nil {
		return nil, err
	}
	defer broker.Stop()

	id := uuid.NewString()
	coords := make([]*giveaway.Coordinator, nodes)
	for i := range coords {
		session, err := giveaway.NewSession(giveaway.SessionConfig{
			ID:           id,
			OrganizerID:  organizer,
			Participants: participants,
			CommitPhase:  commit,
			RevealPhase:  reveal,
			Namespace:    "giveaway/v1/" + id,
		})
		if err != nil {
			return nil, err
		}
		c, err := giveaway.NewCoordinator(broker, session, fmt.Sprintf("node-%d", i))
		if err != nil {
			return nil, err
		}
		if err := c.Listen(ctx); err != nil {
			return nil, err
		}
		coords[i] = c
	}

	results := make([]*models.GiveawayResult, nodes)
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range coords {
		g.Go(func() error {
			r, err := c.Run(gctx)
			if err != nil {
				return fmt.Errorf("node-%d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, c := range coords {
			c.Cancel()
		}
		return nil, err
	}

	for i, r := range results[1:] {
		if r.Winner != results[0].Winner || r.RandomSeed != results[0].RandomSeed {
			return results, fmt.Errorf("node-%d disagrees: winner %s, node-0 winner %s", i+1, r.Winner, results[0].Winner)
		}
	}
	return results, nil
}
