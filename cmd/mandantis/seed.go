package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/config"
	"github.com/mandantis/mandantis/internal/crypto"
	"github.com/mandantis/mandantis/internal/submission"
	"github.com/mandantis/mandantis/internal/tenant"
	"github.com/mandantis/mandantis/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a sample firm with an owner account and submissions",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedSubmissions = []submission.CreateSubmissionInput{
	{ClientName: "Bäckerei Lehmann GmbH", DocType: "invoice", Period: "2026-07", FileName: "er-2026-07-001.pdf"},
	{ClientName: "Bäckerei Lehmann GmbH", DocType: "receipt", Period: "2026-07", FileName: "kasse-juli.pdf"},
	{ClientName: "Autohaus Weber KG", DocType: "statement", Period: "2026-07", FileName: "kontoauszug-07.pdf"},
	{ClientName: "Praxis Dr. Sommer", DocType: "invoice", Period: "2026-08", FileName: "ar-2026-08-014.pdf"},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	settingsCipher, err := crypto.NewCipher(cfg.Security.SettingsKey)
	if err != nil {
		return err
	}

	orgStore := tenant.NewStore(pool, settingsCipher)
	userStore := user.NewStore(pool)
	submissionStore := submission.NewStore(pool)

	// Check if seed has already run.
	if _, err := orgStore.GetBySlug(ctx, "musterkanzlei"); err == nil {
		slog.Info("sample firm already exists, skipping seed")
		return nil
	} else if !errors.Is(err, tenant.ErrNotFound) {
		return fmt.Errorf("checking existing firm: %w", err)
	}

	org, err := orgStore.Create(ctx, tenant.CreateOrganizationInput{
		Slug: "musterkanzlei",
		Name: "Musterkanzlei Becker",
		Plan: "starter",
	})
	if err != nil {
		return fmt.Errorf("creating sample firm: %w", err)
	}
	slog.Info("created sample firm", "id", org.ID, "slug", org.Slug)

	const ownerPassword = "mandantis-demo"
	owner, err := userStore.Create(ctx, user.CreateUserInput{
		Email:          "inhaber@musterkanzlei.example",
		Password:       ownerPassword,
		Name:           "Sabine Becker",
		Role:           auth.RoleOwner,
		OrganizationID: org.ID,
	})
	if err != nil {
		return fmt.Errorf("creating owner account: %w", err)
	}
	slog.Info("created owner account", "id", owner.ID, "email", owner.Email)

	tx, err := submissionStore.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, in := range seedSubmissions {
		s, err := submissionStore.CreateTx(ctx, tx, org.ID, in)
		if err != nil {
			return fmt.Errorf("creating submission for %q: %w", in.ClientName, err)
		}
		slog.Info("created submission", "id", s.ID, "client", s.ClientName)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	fmt.Printf("\n=== Sample Data Seeded ===\n")
	fmt.Printf("Firm:        %s (/%s)\n", org.Name, org.Slug)
	fmt.Printf("Owner:       %s\n", owner.Email)
	fmt.Printf("Password:    %s\n", ownerPassword)
	fmt.Printf("Submissions: %d\n", len(seedSubmissions))
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST -H 'Content-Type: application/json' \\\n")
	fmt.Printf("    -d '{\"email\":\"%s\",\"password\":\"%s\"}' \\\n", owner.Email, ownerPassword)
	fmt.Printf("    http://localhost:8080/api/v1/auth/login\n")

	return nil
}
