// Package cli implements labboctl, a terminal client for a labbo server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukerupert/labbo/internal/apiclient"
	"github.com/dukerupert/labbo/internal/logging"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/session"
)

// DefaultServer is used when neither --server nor LABBO_SERVER is set.
const DefaultServer = "http://localhost:8080"

var errNotSignedIn = errors.New("not signed in, run `labboctl login` first")

// app holds what every command needs once flags and config are resolved.
type app struct {
	v          *viper.Viper
	configFile string

	logger *slog.Logger
	client *apiclient.Client
	sess   *session.Context
}

// NewRootCommand builds the labboctl command tree with its own viper
// instance, so several trees can coexist in one process.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "labboctl",
		Short: "Lab equipment inventory client",
		Long: `labboctl talks to a labbo server: sign in, look up equipment by id
or QR label, and follow due-date reminders for borrowed items.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.AddGroup(&cobra.Group{ID: "account", Title: "Account Commands:"})
	root.AddGroup(&cobra.Group{ID: "inventory", Title: "Inventory Commands:"})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default is $HOME/.labbo.yaml)")
	pf.String("server", DefaultServer, "labbo server base URL")
	pf.String("token-file", "", "session token file (default is <user config dir>/labbo/session)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")

	for _, name := range []string{"server", "token-file", "log-level"} {
		if err := a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", name, err))
		}
	}

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.registerCmd(),
		a.forgotPasswordCmd(),
		a.resetPasswordCmd(),
		a.verifyEmailCmd(),
		a.demoAccountsCmd(),
		a.equipmentCmd(),
		a.scanCmd(),
		a.remindersCmd(),
	)
	return root
}

// Execute runs labboctl until it finishes or the process is interrupted.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	loadEnvFiles()

	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".labbo")
	}

	a.v.SetEnvPrefix("LABBO")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.logger = logging.Setup(a.v.GetString("log_level"), "text")

	tokenPath := a.v.GetString("token_file")
	if tokenPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		tokenPath = filepath.Join(dir, "labbo", "session")
	}

	a.client = apiclient.NewClient(a.v.GetString("server"))
	a.sess = session.New(a.client, session.NewFileTokenStore(tokenPath), a.logger)
	return nil
}

// requireSession restores the stored session and returns its user.
func (a *app) requireSession(ctx context.Context) (*model.User, error) {
	a.sess.Init(ctx)
	user := a.sess.User()
	if user == nil {
		return nil, errNotSignedIn
	}
	return user, nil
}

// loadEnvFiles loads .env then .env.local; missing files are ignored.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Load(name)
	}
}

func resultErr(res session.Result) error {
	if res.Success {
		return nil
	}
	return errors.New(res.Error)
}
