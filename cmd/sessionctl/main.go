// sessionctl drives the client session agent from a terminal: it signs a
// user in on this machine, checks the cached session, signs out, and lists
// sessions and login history. It can also mint gateway keys for local use.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/chatweet/internal/agent"
	"github.com/prudhvinik1/chatweet/internal/config"
	"github.com/prudhvinik1/chatweet/internal/handlers"
	"github.com/prudhvinik1/chatweet/internal/logger"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	godotenv.Load()

	cfg, err := config.LoadAgentConfig()
	if err != nil {
		return err
	}

	var (
		userID string
		limit  int
		role   string
		secret string
		ttl    time.Duration
	)
	flagSet := pflag.NewFlagSet("sessionctl", pflag.ContinueOnError)
	flagSet.StringVarP(&userID, "user", "u", "", "user id")
	flagSet.StringVar(&cfg.SessionManagerURL, "url", cfg.SessionManagerURL, "session manager endpoint")
	flagSet.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "gateway key sent with every call")
	flagSet.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory holding the cached session")
	flagSet.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-call timeout")
	flagSet.IntVar(&limit, "limit", 0, "history entries to show (server default when 0)")
	flagSet.StringVar(&role, "role", handlers.RoleAnon, "role claim for mint-key")
	flagSet.StringVar(&secret, "secret", os.Getenv("GATEWAY_JWT_SECRET"), "signing secret for mint-key")
	flagSet.DurationVar(&ttl, "ttl", 24*time.Hour, "lifetime of a key from mint-key")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		printHelp(flagSet)
		return errUsage
	}

	logg, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := agent.NewClient(cfg.SessionManagerURL, cfg.APIKey, cfg.Timeout)
	cache := agent.NewFileCache(cfg.CacheDir)
	sessionAgent := agent.New(client, cache, logg)

	requireUser := func() error {
		if userID == "" {
			return errors.New("--user is required")
		}
		return nil
	}

	switch command := flagSet.Arg(0); command {
	case "signin":
		if err := requireUser(); err != nil {
			return err
		}
		sessionAgent.SignedIn(ctx, userID)
		if err := sessionAgent.Wait(ctx); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		return printJSON(sessionAgent.Session())

	case "status":
		if err := requireUser(); err != nil {
			return err
		}
		state := sessionAgent.Load(ctx, userID)
		return printJSON(map[string]any{"state": state, "session": sessionAgent.Session()})

	case "signout":
		if err := requireUser(); err != nil {
			return err
		}
		if err := sessionAgent.SignOut(ctx, userID, nil); err != nil {
			return err
		}
		return printJSON(map[string]any{"state": sessionAgent.State()})

	case "sessions":
		if err := requireUser(); err != nil {
			return err
		}
		return printJSON(sessionAgent.ActiveSessions(ctx, userID))

	case "history":
		if err := requireUser(); err != nil {
			return err
		}
		history, err := client.LoginHistory(ctx, userID, limit)
		if err != nil {
			return err
		}
		return printJSON(history)

	case "cleanup":
		result, err := client.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "fingerprint":
		fmt.Println(agent.Fingerprint(agent.LocalEnvironment()))
		return nil

	case "mint-key":
		if secret == "" {
			return errors.New("--secret or GATEWAY_JWT_SECRET is required")
		}
		if ttl <= 0 {
			return errors.New("--ttl must be positive")
		}
		key, err := handlers.SignGatewayKey(secret, role, ttl)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil

	default:
		logg.Debug("unknown command", zap.String("command", command))
		printHelp(flagSet)
		return errUsage
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: sessionctl [flags] <command>

Commands:
  signin       create a session for --user on this machine
  status       validate the cached session for --user
  signout      end the cached session and clear it
  sessions     list live sessions for --user
  history      show login history for --user
  cleanup      sweep expired sessions (needs a service_role key)
  fingerprint  print a fresh device fingerprint
  mint-key     sign a gateway key for --role, valid for --ttl

Flags:
`)
	flagSet.PrintDefaults()
}
