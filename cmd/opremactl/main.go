package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/erazemk/oprema/internal/bootstrap"
	"github.com/erazemk/oprema/internal/config"
	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/report"
)

const usage = "Usage: opremactl <init|migrate|useradd|report> [-config path] [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:])
	case "migrate":
		err = cmdMigrate(os.Args[2:])
	case "useradd":
		err = cmdUserAdd(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// open loads the configuration and returns a migrated database.
func open(ctx context.Context, configPath string) (*config.Config, *db.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN, db.Options{
		LockTimeout:  cfg.Database.LockTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, nil, err
	}
	return cfg, database, nil
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.Parse(args)

	ctx := context.Background()
	cfg, database, err := open(ctx, *configPath)
	if err != nil {
		return err
	}
	defer database.Close()

	password, err := bootstrap.EnsureAdmin(ctx, database, cfg.Admin.Email, cfg.Admin.Name)
	if err != nil {
		return err
	}

	fmt.Printf("Database ready: %s (%s)\n", cfg.Database.Driver, cfg.Database.DSN)
	if password == "" {
		fmt.Println("An admin account already exists, nothing created.")
		return nil
	}

	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", cfg.Admin.Email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	return nil
}

func cmdMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.Parse(args)

	ctx := context.Background()
	_, database, err := open(ctx, *configPath)
	if err != nil {
		return err
	}
	defer database.Close()

	version, err := db.SchemaVersion(ctx, database)
	if err != nil {
		return err
	}
	fmt.Printf("Schema at version %d\n", version)
	return nil
}

func cmdUserAdd(args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	email := fs.String("email", "", "email address (required)")
	name := fs.String("name", "", "full name (required)")
	department := fs.String("department", "", "department")
	role := fs.String("role", model.RoleStaff, "role: staff or admin")
	fs.Parse(args)

	if *email == "" || *name == "" {
		fs.Usage()
		return fmt.Errorf("-email and -name are required")
	}

	ctx := context.Background()
	_, database, err := open(ctx, *configPath)
	if err != nil {
		return err
	}
	defer database.Close()

	password, err := bootstrap.GeneratePassword(bootstrap.PasswordLength)
	if err != nil {
		return err
	}

	user, err := bootstrap.CreateUser(ctx, database, *email, *name, *department, password, *role)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email %s is already registered", *email)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Created %s %s (id %d)\n", user.Role, user.Email, user.ID)
	fmt.Printf("  Password: %s\n", password)
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	out := fs.String("o", "inventory.xlsx", "output workbook path")
	fs.Parse(args)

	ctx := context.Background()
	cfg, database, err := open(ctx, *configPath)
	if err != nil {
		return err
	}
	defer database.Close()

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *out, err)
	}

	if err := report.Export(ctx, database, cfg.Inventory.LowStockThreshold, f); err != nil {
		f.Close()
		os.Remove(*out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Report written: %s\n", *out)
	return nil
}
