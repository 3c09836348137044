package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/dashboard"
	"github.com/spf13/cobra"
)

var (
	driverName     string
	driverEmail    string
	driverPassword string
)

var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Manage driver accounts",
}

var driverCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create a driver account",
	Example: `  eldflow -c config.yaml driver create --name "Ada Lovelace" --email ada@example.com --password 's3cret-pass'`,
	RunE:    runDriverCreate,
}

var driverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List driver accounts",
	RunE:  runDriverList,
}

func init() {
	driverCreateCmd.Flags().StringVar(&driverName, "name", "", "Driver name (required)")
	driverCreateCmd.Flags().StringVar(&driverEmail, "email", "", "Login email (required)")
	driverCreateCmd.Flags().StringVar(&driverPassword, "password", "", "Initial password (required)")
	_ = driverCreateCmd.MarkFlagRequired("name")
	_ = driverCreateCmd.MarkFlagRequired("email")
	_ = driverCreateCmd.MarkFlagRequired("password")

	driverCmd.AddCommand(driverCreateCmd)
	driverCmd.AddCommand(driverListCmd)
	rootCmd.AddCommand(driverCmd)
}

func runDriverCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	driver, err := dashboard.RegisterDriver(context.Background(), store.Drivers(), dashboard.SignupRequest{
		Name:     driverName,
		Email:    driverEmail,
		Password: driverPassword,
	}, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	_, _ = color.New(color.FgGreen).Printf("✅ Created driver %s (%s)\n", driver.Email, driver.ID)
	return nil
}

func runDriverList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	drivers, err := store.Drivers().List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list drivers: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tLAST LOGIN")
	for _, d := range drivers {
		lastLogin := "never"
		if d.LastLogin != nil {
			lastLogin = d.LastLogin.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Email, lastLogin)
	}
	return w.Flush()
}
