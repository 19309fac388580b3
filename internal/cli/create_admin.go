package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm/logger"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database"
	"github.com/mrlokans/coursemarket/internal/database/users"
	"github.com/mrlokans/coursemarket/internal/entities"
)

// CreateAdminCommand creates an administrator account. Admins cannot sign
// up through the API, so this is the only way to bootstrap one.
type CreateAdminCommand struct {
	Name     string
	Email    string
	Password string

	cfg *config.Config
}

func NewCreateAdminCommand(cfg *config.Config) *CreateAdminCommand {
	return &CreateAdminCommand{cfg: cfg}
}

func (cmd *CreateAdminCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)

	fs.StringVar(&cmd.Name, "name", "Administrator", "Display name of the account")
	fs.StringVar(&cmd.Email, "email", "", "Email address used to sign in (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password; read from stdin when omitted")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-admin -email <email> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an administrator account in the configured database.\n")
		fmt.Fprintf(os.Stderr, "The database is selected with DATABASE_DRIVER, DATABASE_PATH and DATABASE_DSN.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  echo 's3cret-pass' | %s create-admin -email admin@example.com -name \"Grace\"\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Email == "" {
		return fmt.Errorf("required flag -email not provided")
	}
	return nil
}

func (cmd *CreateAdminCommand) Run() error {
	if cmd.Password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		cmd.Password = strings.TrimRight(line, "\r\n")
	}

	db, err := database.Open(cmd.cfg.Database, logger.Warn)
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(users.NewRepository(db.DB), cmd.cfg.Auth)
	user, err := service.CreateUser(context.Background(), cmd.Name, cmd.Email, cmd.Password, entities.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Printf("Created administrator %s (id %d)\n", user.Email, user.ID)
	fmt.Print(sessionSecretHint(cmd.cfg.Auth))
	return nil
}

// sessionSecretHint suggests a fresh AUTH_SESSION_SECRET when none is set.
func sessionSecretHint(cfg config.Auth) string {
	if cfg.SessionSecret != "" {
		return ""
	}
	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\nAUTH_SESSION_SECRET is not set, so CSRF protection is off. To enable it, start the server with:\n  AUTH_SESSION_SECRET=%s\n", secret)
}
