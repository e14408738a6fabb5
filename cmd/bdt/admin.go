package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bdt-io/bdt/internal/app"
	"github.com/bdt-io/bdt/internal/config"
	"github.com/bdt-io/bdt/internal/database"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/workflow"
)

var synthesizeCmd = &cobra.Command{
	Use:     "synthesize",
	Aliases: []string{"synth"},
	Short:   "Write a config.yaml with secure random secrets",
	Long: `Synthesize writes the JWT signing secret and the database password into
config.yaml. Settings already in the file are kept; existing secrets are
only replaced with --rotate-secrets.`,
	RunE: runSynthesize,
}

var (
	rotateSecretsFlag bool
	outputPathFlag    string
	envFlag           string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create services, service intervenants, categories and users from a YAML file",
	Long: `Seed loads reference data. Rows that already exist are skipped, so a
seed file can be applied again after editing.`,
	RunE: runSeed,
}

var seedFileFlag string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete tickets created before a period",
	Long: `Cleanup deletes every ticket created before the period (1y, 2y, 3y or
5y) with its messages, images and history. Without --confirm it only
prints how many tickets would be deleted.`,
	RunE: runCleanup,
}

var (
	periodFlag  string
	confirmFlag string
)

var resetPasswordCmd = &cobra.Command{
	Use:     "reset-password",
	Aliases: []string{"reset-user"},
	Short:   "Reset a user's password",
	RunE:    runResetPassword,
}

var (
	usernameFlag string
	passwordFlag string
)

func init() {
	synthesizeCmd.Flags().BoolVar(&rotateSecretsFlag, "rotate-secrets", false, "Replace existing secrets")
	synthesizeCmd.Flags().StringVar(&outputPathFlag, "output", "", "Output file (default <config>/config.yaml)")
	synthesizeCmd.Flags().StringVar(&envFlag, "env", "development", "Value of app.env")

	seedCmd.Flags().StringVar(&seedFileFlag, "file", "seed.yaml", "Seed file")

	cleanupCmd.Flags().StringVar(&periodFlag, "period", "", "Age of the tickets to delete: 1y, 2y, 3y, 5y (required)")
	cleanupCmd.Flags().StringVar(&confirmFlag, "confirm", "", "Type "+workflow.ConfirmationPhrase+" to delete")
	_ = cleanupCmd.MarkFlagRequired("period")

	resetPasswordCmd.Flags().StringVar(&usernameFlag, "username", "", "Username to reset (required)")
	resetPasswordCmd.Flags().StringVar(&passwordFlag, "password", "", "New password (required)")
	_ = resetPasswordCmd.MarkFlagRequired("username")
	_ = resetPasswordCmd.MarkFlagRequired("password")
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	out := outputPathFlag
	if out == "" {
		out = filepath.Join(configPathFlag, "config.yaml")
	}
	synth := config.NewSynthesizer(out, envFlag)
	if err := synth.Synthesize(rotateSecretsFlag); err != nil {
		return fmt.Errorf("failed to synthesize configuration: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d secret(s) to %s\n", synth.GetGeneratedCount(), out)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log := loadConfig()
	ctx := cmd.Context()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.RunMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	current, err := database.AppliedVersion(ctx, db)
	if err != nil {
		return err
	}
	log.Info().Int("applied", applied).Int("version", current).Msg("migrations done")
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s), schema at version %d\n", applied, current)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := app.LoadSeedFile(seedFileFlag)
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		res, err := a.Seed(cmd.Context(), f)
		if res != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d service(s), %d service intervenant(s), %d category(ies), %d user(s)\n",
				res.Services, res.ServiceIntervenants, res.Categories, res.Users)
		}
		return err
	})
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		if confirmFlag == "" {
			res, err := a.Tickets.CleanupCount(ctx, app.SystemActor, periodFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bon(s) seraient supprimés. Relancez avec --confirm %s.\n",
				res.Count, workflow.ConfirmationPhrase)
			return nil
		}
		_, msg, err := a.Tickets.Cleanup(ctx, app.SystemActor, &models.CleanupRequest{Period: periodFlag, Confirmation: confirmFlag})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
}

func runResetPassword(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		if err := a.Users.ResetPassword(cmd.Context(), usernameFlag, passwordFlag); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password of %s reset\n", usernameFlag)
		return nil
	})
}
