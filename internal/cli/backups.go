package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/aqasim81/domain-migration-engine/internal/backup"
)

// errNotBackup is returned when a named table is not a leftover backup copy.
var errNotBackup = errors.New("not a leftover backup table")

var backupsCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "backups",
	Short: "Inspect and resolve backups left by an interrupted run",
	Long: `A run that stops between backing up and committing leaves backup
copies behind, and the domains owning them refuse to migrate until an
operator restores or discards them.`,
}

var backupsListCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "list",
	Short: "List leftover backup tables",
	Args:  cobra.NoArgs,
	RunE:  runBackupsList,
}

var backupsRestoreCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "restore [table...]",
	Short: "Put leftover backups back under their original names",
	RunE:  runBackupsRestore,
}

var backupsDiscardCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "discard [table...]",
	Short: "Drop leftover backups and keep the live tables",
	RunE:  runBackupsDiscard,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	backupsCmd.AddCommand(backupsListCmd, backupsRestoreCmd, backupsDiscardCmd)
	rootCmd.AddCommand(backupsCmd)
}

func runBackupsList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	s, err := openSession(ctx, cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	temps, err := backup.New(s.conn, s.logger).FindIncomplete(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if s.cfg.Format == formatJSON {
		return writeJSON(out, backup.HandleFor(temps...).Copies)
	}

	if len(temps) == 0 {
		fmt.Fprintln(out, "No leftover backups.")

		return nil
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "BACKUP\tTABLE")

	for _, c := range backup.HandleFor(temps...).Copies {
		fmt.Fprintf(tw, "%s\t%s\n", c.Temp, c.Table)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	return nil
}

func runBackupsRestore(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	s, err := openSession(ctx, cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	m := backup.New(s.conn, s.logger)

	h, err := leftoverHandle(ctx, m, args)
	if err != nil {
		return err
	}

	if err := m.Restore(ctx, h); err != nil {
		return fmt.Errorf("restoring backups: %w", err)
	}

	for _, c := range h.Copies {
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", c.Table, c.Temp)
	}

	return nil
}

func runBackupsDiscard(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	s, err := openSession(ctx, cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	m := backup.New(s.conn, s.logger)

	h, err := leftoverHandle(ctx, m, args)
	if err != nil {
		return err
	}

	m.Discard(ctx, h)

	remaining, err := m.FindIncomplete(ctx)
	if err != nil {
		return err
	}

	for _, c := range h.Copies {
		if slices.Contains(remaining, c.Temp) {
			return fmt.Errorf("discarding %s: %w", c.Temp, &backup.IncompleteError{Tables: remaining})
		}

		fmt.Fprintf(cmd.OutOrStdout(), "discarded %s\n", c.Temp)
	}

	return nil
}

// leftoverHandle selects the named leftovers, or all of them when none is named.
func leftoverHandle(ctx context.Context, m *backup.Manager, names []string) (*backup.Handle, error) {
	temps, err := m.FindIncomplete(ctx)
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return backup.HandleFor(temps...), nil
	}

	for _, name := range names {
		if !slices.Contains(temps, name) {
			return nil, fmt.Errorf("%s: %w", name, errNotBackup)
		}
	}

	return backup.HandleFor(names...), nil
}
