// Command stacfed-cli searches a stacfed server from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kailas-cloud/stacfed/internal/version"
	stacfed "github.com/kailas-cloud/stacfed/pkg/sdk"
)

func main() {
	if err := newRootCommand(viper.New()).ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree around one viper instance. Settings come
// from flags, then STACFED_* environment variables, then an optional config file.
func newRootCommand(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "stacfed-cli",
		Short:         "Search STAC collections across federated catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./stacfed-cli.yaml or ~/.config/stacfed/stacfed-cli.yaml)")
	flags.String("server", "http://localhost:8080", "stacfed server base URL")
	flags.String("api-key", "", "bearer token for the server")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.Bool("no-color", false, "disable colored output")
	flags.Bool("debug", false, "log SDK operations to stderr")
	for _, name := range []string{"server", "api-key", "timeout", "no-color", "debug"} {
		_ = v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}

	root.AddCommand(
		newSearchCommand(v),
		newNextCommand(v),
		newConformanceCommand(v),
		newHealthCommand(v),
		newAPIsCommand(v),
		newDocsCommand(v),
		newPurgeCommand(v),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String("stacfed-cli"))
			},
		},
	)
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("STACFED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("stacfed-cli")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/stacfed")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if v.GetBool("no_color") {
		color.NoColor = true
	}
	return nil
}

// newClient builds an SDK client from the resolved settings.
func newClient(v *viper.Viper) (*stacfed.Client, error) {
	opts := []stacfed.Option{
		stacfed.WithHTTPClient(&http.Client{Timeout: v.GetDuration("timeout")}),
		stacfed.WithUserAgent(version.UserAgent("stacfed-cli")),
	}
	if key := v.GetString("api_key"); key != "" {
		opts = append(opts, stacfed.WithAPIKey(key))
	}
	if v.GetBool("debug") {
		opts = append(opts, stacfed.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}
	c, err := stacfed.New(v.GetString("server"), opts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}
