// Command cli runs maintenance tasks against the database: applying
// migrations, seeding the catalog and creating operator accounts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/app"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/catalog"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/config"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/crypto"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

const usage = `usage: cli <command> [flags]

commands:
  migrate                      apply pending database migrations
  seed <file.yaml>             create or update catalog products from a seed file
  create-admin -name -email -password -phone
                               create an operator account
`

// tokenIssuerUnused satisfies services.TokenIssuer for commands that never
// sign anyone in.
type tokenIssuerUnused struct{}

func (tokenIssuerUnused) Issue(*db.Account) (string, error) {
	return "", errors.New("token issuing is not available from the cli")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "migrate", "seed", "create-admin":
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, logFile, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	switch command {
	case "seed":
		return seed(ctx, pool, args, logger, out)
	case "create-admin":
		return createAdmin(ctx, pool, args, logger, out)
	default:
		fmt.Fprintln(out, "migrations applied")
		return nil
	}
}

func seed(ctx context.Context, pool *pgxpool.Pool, args []string, logger *slog.Logger, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("seed takes exactly one file argument")
	}
	result, err := catalog.NewSeeder(db.NewProductStore(pool), logger).SeedFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "catalog seeded: %d created, %d updated\n", result.Created, result.Updated)
	return nil
}

func createAdmin(ctx context.Context, pool *pgxpool.Pool, args []string, logger *slog.Logger, out io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(out)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "login email")
	password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "login password (defaults to $ADMIN_PASSWORD)")
	phone := fs.String("phone", "", "contact phone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hasher, err := crypto.NewHasher(bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	authService, err := services.NewAuthService(db.NewAccountStore(pool), hasher, tokenIssuerUnused{}, logger)
	if err != nil {
		return err
	}

	account, err := authService.CreateAdmin(ctx, services.RegisterInput{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Phone:    *phone,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "admin created: %s (%s)\n", account.Email, account.ID)
	return nil
}
