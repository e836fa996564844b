package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/database"
	"github.com/mrlokans/ebookstore/internal/database/catalog"
)

// passwordEnv lets scripts pass the password without it showing up in ps.
const passwordEnv = "EBOOKSTORE_AUTHOR_PASSWORD"

// CreateAuthorCommand bootstraps an author account without going through HTTP.
type CreateAuthorCommand struct {
	Username     string
	Email        string
	Password     string
	DatabasePath string

	Out io.Writer
}

func NewCreateAuthorCommand() *CreateAuthorCommand {
	return &CreateAuthorCommand{Out: os.Stdout}
}

func (cmd *CreateAuthorCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-author", flag.ContinueOnError)

	fs.StringVar(&cmd.Username, "username", "", "Author username (required)")
	fs.StringVar(&cmd.Email, "email", "", "Author email, used to log in (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (or set "+passwordEnv+")")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the sqlite database (defaults to DATABASE_PATH)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-author -username <name> -email <email> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an author account.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Password == "" {
		cmd.Password = os.Getenv(passwordEnv)
	}
	if cmd.Username == "" || cmd.Email == "" {
		return fmt.Errorf("required flags -username and -email not provided")
	}
	if cmd.Password == "" {
		return fmt.Errorf("a password is required: use -password or %s", passwordEnv)
	}
	return nil
}

func (cmd *CreateAuthorCommand) Run() error {
	db, cfg, err := openDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	return cmd.run(context.Background(), db, cfg.Auth)
}

func (cmd *CreateAuthorCommand) run(ctx context.Context, db *database.Database, cfg config.Auth) error {
	accounts := auth.NewService(catalog.NewRepository(db.DB), auth.NewTokenService(cfg), cfg)

	author, err := accounts.RegisterAuthor(ctx, cmd.Username, cmd.Email, cmd.Password)
	if err != nil {
		return fmt.Errorf("create author: %w", err)
	}

	fmt.Fprintf(cmd.Out, "Created author %s (id %d, %s)\n", author.Username, author.ID, author.Email)
	return nil
}
