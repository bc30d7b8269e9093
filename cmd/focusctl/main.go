package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/config"
	"github.com/yourname/focustracker/internal/seed"
	"github.com/yourname/focustracker/internal/storage"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var envFile string

var rootCmd = &cobra.Command{
	Use:          "focusctl",
	Short:        "Maintain the focus tracker database",
	SilenceUsage: true,
}

// env holds what every command needs. The caller must defer close().
type env struct {
	cfg    *config.Config
	logger *internal.ZapLogger
	repos  *storage.Repositories
}

func (e *env) close() {
	if e.repos != nil {
		if err := e.repos.Close(); err != nil {
			e.logger.Errorf("failed to close storage: %v", err)
		}
	}
	_ = e.logger.Sync()
}

func newEnv(ctx context.Context, withStorage bool) (*env, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	e := &env{cfg: cfg, logger: logger}
	if withStorage {
		if e.repos, err = storage.Open(ctx, cfg, logger); err != nil {
			return nil, fmt.Errorf("opening %s storage: %w", cfg.DBType, err)
		}
	}
	return e, nil
}

func newSeeder(e *env, seedValue uint64) *seed.Seeder {
	return seed.NewSeeder(e.repos, seed.NewGenerator(seedValue, time.Now()), e.logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCounts(title string, c storage.Counts) {
	fmt.Println(title)
	fmt.Printf("   Users:    %d\n", c.Users)
	fmt.Printf("   Sessions: %d\n", c.Sessions)
	fmt.Printf("   Events:   %d\n", c.Events)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations to the configured SQL backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.close()

		if err := storage.Migrate(cmd.Context(), e.cfg, e.logger); err != nil {
			return err
		}
		fmt.Printf("Schema is up to date (%s)\n", e.cfg.DBType)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the test user with one session and event",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		counts, err := newSeeder(e, uint64(time.Now().UnixNano())).Init(cmd.Context())
		if err != nil {
			return fmt.Errorf("initializing: %w", err)
		}
		fmt.Printf("Test user %s is ready\n", seed.TestUserEmail)
		printCounts("Database Statistics:", counts)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the sample users and their sessions and events",
	RunE: func(cmd *cobra.Command, args []string) error {
		seedValue, _ := cmd.Flags().GetUint64("seed")
		asJSON, _ := cmd.Flags().GetBool("json")
		if seedValue == 0 {
			seedValue = uint64(time.Now().UnixNano())
		}

		e, err := newEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		res, err := newSeeder(e, seedValue).Seed(cmd.Context())
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		if asJSON {
			return printJSON(res)
		}
		for _, u := range res.Users {
			fmt.Printf("Created user: %s (%s)\n", u.Name, u.Email)
		}
		printCounts("Created:", res.Created)
		printCounts("Totals:", res.Totals)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the sample users and everything they own",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		deleted, remaining, err := newSeeder(e, 1).Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("clearing: %w", err)
		}
		if deleted == (storage.Counts{}) {
			fmt.Println("No seeded users found.")
		} else {
			printCounts("Deleted:", deleted)
		}
		printCounts("Remaining:", remaining)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := newEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		counts, err := newSeeder(e, 1).Stats(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(counts)
		}
		printCounts("Database Statistics:", counts)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file applied before reading the environment")

	seedCmd.Flags().Uint64("seed", 0, "random seed (0 picks one from the clock)")
	seedCmd.Flags().Bool("json", false, "print the result as JSON")
	statsCmd.Flags().Bool("json", false, "print counts as JSON")

	rootCmd.AddCommand(migrateCmd, initCmd, seedCmd, clearCmd, statsCmd)
}
