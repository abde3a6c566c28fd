package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/brandon/persona-responder/internal/persona"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the mailbox until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		a.responder.LogStartup()
		err = a.responder.Run(ctx)
		logger.Info("Shutting down persona responder")
		return err
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single fetch-and-reply cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.responder.RunCycle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unseen=%d replied=%d skipped=%d deferred=%d\n",
			stats.Unseen, stats.Replied, stats.Skipped, stats.Deferred)
		return nil
	},
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the persona registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := persona.Load(cfg.PersonasFile, cfg.DefaultPersona)
		if err != nil {
			return fmt.Errorf("failed to load personas: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tADDRESS\tDEFAULT")
		for _, p := range registry.All() {
			mark := ""
			if p.Key == registry.Default().Key {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Key, p.Name, p.Address, mark)
		}
		return w.Flush()
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Summarize persisted state",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		st := store.Load(cmd.Context())
		now := time.Now()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend:            %s (%s)\n", cfg.StateBackend, cfg.StatePath)
		fmt.Fprintf(out, "handled messages:   %d\n", len(st.HandledIDs))
		fmt.Fprintf(out, "sends last hour:    %d\n", len(st.SendsSince(now.Add(-time.Hour))))
		fmt.Fprintf(out, "sends last 24h:     %d\n", len(st.SendsSince(now.Add(-24*time.Hour))))
		fmt.Fprintf(out, "conversation pairs: %d\n", st.Conversations.Pairs())
		return nil
	},
}

var statePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention limits to persisted state now",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.WithoutCancel(cmd.Context())
		st := store.Load(ctx)
		before := len(st.HandledIDs) + len(st.SendLog) + st.Conversations.Pairs()
		if err := store.Save(ctx, st); err != nil {
			return err
		}
		after := len(st.HandledIDs) + len(st.SendLog) + st.Conversations.Pairs()

		logger.WithField("removed", before-after).Info("State pruned")
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", before-after)
		return nil
	},
}
