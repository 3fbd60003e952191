package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-social-login/internal/config"
	"github.com/jrsteele09/go-social-login/oauth2"
	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		verbose bool
		cfg     config.Config
	)

	root := &cobra.Command{
		Use:           "sociallogin",
		Short:         "Sign in to OAuth2 / OpenID Connect providers from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err == nil {
				log.Debug().Str("file", envFile).Msg("dotenv loaded")
			}
			setupLogging(verbose)

			var err error
			cfg, err = config.New()
			return err
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// withApp wires the login stack and tears it down after run.
	withApp := func(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn().Err(err).Msg("closing store")
				}
			}()
			return run(ctx, a, args)
		}
	}

	root.AddCommand(
		newLoginCmd(withApp),
		newRefreshCmd(withApp),
		newLogoutCmd(withApp),
		newStatusCmd(withApp),
		newProvidersCmd(withApp),
		newServeCmd(withApp),
	)
	return root
}

type appRunner func(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

func newLoginCmd(withApp appRunner) *cobra.Command {
	var (
		flow       string
		scope      []string
		loginHint  string
		prompt     string
		forceLogin bool
	)
	cmd := &cobra.Command{
		Use:   "login <provider>",
		Short: "Open the provider's sign in page and wait for the redirect",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			stopServer, err := a.startCallbackServer()
			if err != nil {
				return err
			}
			defer func() {
				if err := stopServer(); err != nil {
					log.Warn().Err(err).Msg("stopping callback server")
				}
			}()

			resp, err := a.logins.Login(ctx, args[0], oauthmodel.LoginOptions{
				Flow:       oauth2.Flow(flow),
				Scope:      scope,
				LoginHint:  loginHint,
				Prompt:     prompt,
				ForceLogin: forceLogin,
			})
			if err != nil {
				if oauthmodel.IsCancellation(err) {
					log.Info().Str("provider", args[0]).Msg("login cancelled")
					return nil
				}
				return err
			}
			return printJSON(resp)
		}),
	}
	cmd.Flags().StringVar(&flow, "flow", string(oauth2.PopupFlow), "presentation: popup|redirect")
	cmd.Flags().StringSliceVar(&scope, "scope", nil, "override the configured scopes")
	cmd.Flags().StringVar(&loginHint, "login-hint", "", "pre-fill the username on the provider's page")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt parameter, e.g. select_account or consent")
	cmd.Flags().BoolVar(&forceLogin, "force-login", false, "ask the provider to show its login screen")
	return cmd
}

func newRefreshCmd(withApp appRunner) *cobra.Command {
	var refreshToken string
	cmd := &cobra.Command{
		Use:   "refresh <provider>",
		Short: "Exchange the stored refresh token for new tokens",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			resp, err := a.logins.Refresh(ctx, args[0], oauthmodel.RefreshOptions{RefreshToken: refreshToken})
			if err != nil {
				return err
			}
			return printJSON(resp)
		}),
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "use this refresh token instead of the stored one")
	return cmd
}

func newLogoutCmd(withApp appRunner) *cobra.Command {
	var postLogoutRedirect string
	cmd := &cobra.Command{
		Use:   "logout <provider>",
		Short: "Forget the stored tokens and open the provider's end session page",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return a.logins.Logout(ctx, args[0], oauthmodel.LogoutOptions{PostLogoutRedirectURL: postLogoutRedirect})
		}),
	}
	cmd.Flags().StringVar(&postLogoutRedirect, "post-logout-redirect", "", "override the configured post logout redirect URL")
	return cmd
}

func newStatusCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "status <provider>",
		Short: "Report whether unexpired tokens are stored for the provider",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			loggedIn, err := a.logins.IsLoggedIn(ctx, args[0])
			if err != nil {
				return err
			}
			if !loggedIn {
				fmt.Printf("%s: not logged in\n", args[0])
				return nil
			}
			code, err := a.logins.GetAuthorizationCode(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(code)
		}),
	}
}

func newProvidersCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the configured providers",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ []string) error {
			fmt.Println(strings.Join(a.registry.IDs(), "\n"))
			return nil
		}),
	}
}

// newServeCmd keeps the callback server up so logins started elsewhere against a shared store
// (redirect flow, or a separate process with a Redis store) can complete here.
func newServeCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the redirect callback server until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			displayAppname(a.config.GetAppName())
			stopServer, err := a.startCallbackServer()
			if err != nil {
				return err
			}
			<-ctx.Done()
			log.Info().Msg("Server stopping")
			return stopServer()
		}),
	}
}

func setupLogging(verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Join(errors.New("[sociallogin] encode output"), err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
