package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"dynconn/cmd/dynctl/internal/client"
	"dynconn/connectors/base"
)

type globalOptions struct {
	server *string
	token  *string
}

func (o *globalOptions) client() *client.Client {
	return client.New(*o.server, *o.token)
}

// connFlags collects a descriptor from command-line flags
type connFlags struct {
	driver   string
	username string
	password string
	host     string
	port     int32
	database string
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.driver, "driver", "postgres", "Database driver (postgres or mysql)")
	cmd.Flags().StringVarP(&f.username, "user", "u", "", "Database user")
	cmd.Flags().StringVarP(&f.password, "password", "p", os.Getenv("DYNCTL_DB_PASSWORD"), "Database password (default $DYNCTL_DB_PASSWORD)")
	cmd.Flags().StringVar(&f.host, "host", "localhost", "Database host")
	cmd.Flags().Int32Var(&f.port, "port", 0, "Database port (default per driver)")
	cmd.Flags().StringVarP(&f.database, "database", "d", "", "Database name")
}

func (f *connFlags) info() (base.ConnInfo, error) {
	driver, err := base.ParseDriver(f.driver)
	if err != nil {
		return base.ConnInfo{}, err
	}
	port := f.port
	if port == 0 {
		switch driver {
		case base.Mysql:
			port = 3306
		default:
			port = 5432
		}
	}
	info := base.NewConnInfo(driver, f.username, f.password, f.host, port, f.database)
	if err := info.Validate(); err != nil {
		return base.ConnInfo{}, err
	}
	return info, nil
}

// connCmd returns the conn subcommand for managing registry entries.
func connCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage live connections",
	}

	cmd.AddCommand(connKeysCmd(opts))
	cmd.AddCommand(connInfoCmd(opts))
	cmd.AddCommand(connListCmd(opts))
	cmd.AddCommand(connGetCmd(opts))
	cmd.AddCommand(connCreateCmd(opts))
	cmd.AddCommand(connUpdateCmd(opts))
	cmd.AddCommand(connDeleteCmd(opts))

	return cmd
}

func connKeysCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List live connection keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := opts.client().Keys(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			if len(keys) == 0 {
				fmt.Println("No live connections.")
				return nil
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func connInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show every live key with its connection URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.client().Info(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to show connections: %w", err)
			}
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			fmt.Printf("Live connections (%d):\n", len(keys))
			fmt.Println(strings.Repeat("-", 72))
			for _, k := range keys {
				fmt.Printf("%-38s %s\n", k, info[k])
			}
			return nil
		},
	}
}

func connListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored connection descriptors",
		Long: `List descriptors from the server's persistence store, or from memory when
the server runs without one. Passwords are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := opts.client().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list connections: %w", err)
			}
			for i, info := range list {
				fmt.Printf("%3d. %s\n", i+1, info.Redacted())
			}
			fmt.Printf("\nTotal: %d\n", len(list))
			return nil
		},
	}
}

func connGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Show one live connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.client().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", args[0], err)
			}
			fmt.Println(info.Redacted())
			return nil
		},
	}
}

func connCreateCmd(opts *globalOptions) *cobra.Command {
	var (
		flags connFlags
		key   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new connection pool",
		Long: `Open a new connection pool on the server. Without --key the server
generates the key.

Examples:
  dynctl conn create --driver postgres -u dev -d orders --host pg.internal
  dynctl conn create --key reporting --driver mysql -u ro -d reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := flags.info()
			if err != nil {
				return err
			}
			msg, err := opts.client().Create(cmd.Context(), key, info)
			if err != nil {
				return fmt.Errorf("failed to create connection: %w", err)
			}
			fmt.Println(msg)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&key, "key", "k", "", "Key to register under (default: generated)")
	return cmd
}

func connUpdateCmd(opts *globalOptions) *cobra.Command {
	var flags connFlags

	cmd := &cobra.Command{
		Use:   "update KEY",
		Short: "Replace the pool under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := flags.info()
			if err != nil {
				return err
			}
			msg, err := opts.client().Update(cmd.Context(), args[0], info)
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", args[0], err)
			}
			fmt.Println(msg)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func connDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Close and remove the pool under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := opts.client().Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}
			fmt.Println(msg)
			return nil
		},
	}
}

// checkCmd probes a database without registering it.
func checkCmd(opts *globalOptions) *cobra.Command {
	var flags connFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the server can reach a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := flags.info()
			if err != nil {
				return err
			}
			ok, err := opts.client().Check(cmd.Context(), info)
			if err != nil {
				return fmt.Errorf("check failed: %w", err)
			}
			if !ok {
				return fmt.Errorf("%s is not reachable", info.Redacted())
			}
			fmt.Printf("%s is reachable\n", info.Redacted())
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// tokenCmd mints an HS256 bearer token for servers with DYNCONN_JWT_SECRET set.
func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			signed, err := mintToken(secret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("DYNCONN_JWT_SECRET"), "HS256 secret (default $DYNCONN_JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "dynctl", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}

func mintToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

