package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cardbot/internal/bot"
	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/dedup"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/lock"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/transport"
	"github.com/hpungsan/cardbot/internal/transport/discord"
	"github.com/hpungsan/cardbot/internal/transport/slack"
	"github.com/hpungsan/cardbot/internal/web"
)

// maxStdinBytes bounds preview text read from stdin.
const maxStdinBytes = ops.MaxPreviewChars

// replayBatchSize is large enough that a replay file is processed in one cycle.
const replayBatchSize = 1 << 16

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "cardbot",
		Usage:   "Reply to {{Card Name}} mentions with card details",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Config file (default: ~/.cardbot/config.json plus project .cardbot/config.json)"},
			&cli.BoolFlag{Name: "offline", Usage: "Skip image checks and link every image as if it exists"},
		},
		Before: func(c *cli.Context) error {
			if err := env.setup(c.String("config")); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			env.offline = env.offline || c.Bool("offline")
			return nil
		},
		Commands: []*cli.Command{
			runCmd(env),
			replayCmd(env),
			resolveCmd(env),
			previewCmd(env),
			cardsCmd(env),
			historyCmd(env),
			lookupsCmd(env),
			serveCmd(env),
			mcpCmd(env),
		},
	}
	// Errors are returned to main, which prints them once
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command, the long-running poller.
func runCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Watch a channel and reply to card mentions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Aliases: []string{"c"}, Usage: "Channel id to watch (default: config channel)"},
			&cli.StringFlag{Name: "transport", Aliases: []string{"t"}, Usage: "discord|slack (default: config transport)"},
			&cli.IntFlag{Name: "batch-size", Usage: "Events fetched per stream per cycle"},
			&cli.DurationFlag{Name: "poll-interval", Usage: "Minimum time between cycles, e.g. 5s"},
			&cli.BoolFlag{Name: "split-streams", Usage: "Poll submissions and comments concurrently"},
			&cli.StringFlag{Name: "identity", Usage: "Bot name for the self-mention card (default: account name)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			applyRunFlags(c, &cfg)
			if cfg.Channel == "" {
				return outputError(errors.NewInvalidRequest("channel is required (--channel or config channel)"))
			}
			if err := cfg.Validate(); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			env.cfg = &cfg

			token, err := cfg.Token()
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			t, err := newTransport(cfg.Transport, token)
			if err != nil {
				return outputError(errors.NewTransport("connect", err))
			}

			lk, err := lock.New(filepath.Join(env.baseDir, "locks"), cfg.Channel)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := lk.TryLock(); err != nil {
				return outputError(err)
			}
			defer func() { _ = lk.Unlock() }()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			identity, err := t.Identity(ctx)
			if err != nil {
				return outputError(errors.NewTransport("identity", err))
			}
			selfName := cfg.Identity
			if selfName == "" {
				selfName = identity
			}

			r, err := env.resolver(selfName)
			if err != nil {
				return outputError(err)
			}
			database, err := env.database()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			b := bot.New(t, r, env.formatter(), dedup.New(cfg.DedupCapacity, cfg.DedupTrim), database, bot.Options{
				Channel:      cfg.Channel,
				BatchSize:    cfg.BatchSize,
				PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
				SplitStreams: cfg.SplitStreams,
				Identity:     identity,
			})
			slog.Info("cardbot starting",
				"transport", cfg.Transport, "channel", cfg.Channel, "identity", identity,
				"cards", r.Corpus().Len(), "run_id", b.RunID(), "lock", lk.Path())

			if err := b.Run(ctx); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// applyRunFlags copies explicitly set run flags over the config.
func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("channel") {
		cfg.Channel = c.String("channel")
	}
	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("poll-interval") {
		cfg.PollIntervalMS = int(c.Duration("poll-interval") / time.Millisecond)
	}
	if c.Bool("split-streams") {
		cfg.SplitStreams = true
	}
	if c.IsSet("identity") {
		cfg.Identity = c.String("identity")
	}
}

// newTransport builds the platform client for name.
func newTransport(name, token string) (transport.Transport, error) {
	switch name {
	case config.TransportDiscord:
		return discord.New(token)
	case config.TransportSlack:
		return slack.New(token), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

// replayEntry is one reply produced by a replay.
type replayEntry struct {
	EventID string         `json:"event_id"`
	Kind    transport.Kind `json:"kind"`
	Author  string         `json:"author,omitempty"`
	Text    string         `json:"text"`
}

// replayOutput is the result of the replay command.
type replayOutput struct {
	Report  bot.Report    `json:"report"`
	Replies []replayEntry `json:"replies"`
}

// replayCmd creates the replay command, a dry run over recorded events.
func replayCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Run one poll cycle over a JSONL event file without posting anything",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "JSONL file, one event per line"},
			&cli.StringFlag{Name: "identity", Value: "cardbot", Usage: "Bot account name; its own events are skipped"},
		},
		Action: func(c *cli.Context) error {
			identity := c.String("identity")
			m, err := transport.LoadReplay(c.String("path"), identity)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			selfName := env.cfg.Identity
			if selfName == "" {
				selfName = identity
			}
			r, err := env.resolver(selfName)
			if err != nil {
				return outputError(err)
			}

			b := bot.New(m, r, env.formatter(), dedup.New(env.cfg.DedupCapacity, env.cfg.DedupTrim), nil, bot.Options{
				Channel:   "replay",
				BatchSize: replayBatchSize,
				Identity:  identity,
			})
			report, err := b.RunOnce(c.Context)
			if err != nil {
				return outputError(err)
			}

			out := replayOutput{Report: report, Replies: []replayEntry{}}
			for _, sent := range m.Replies() {
				out.Replies = append(out.Replies, replayEntry{
					EventID: sent.Event.ID,
					Kind:    sent.Event.Kind,
					Author:  sent.Event.Author,
					Text:    sent.Text,
				})
			}
			return outputJSON(out)
		},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve card names the way mentions are resolved",
		ArgsUsage: "<name> [name...]",
		Action: func(c *cli.Context) error {
			r, err := env.resolver(env.cfg.Identity)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Lookup(c.Context, r, ops.LookupInput{Names: c.Args().Slice()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Show the reply the bot would post for some text (--text or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Usage: "Message text (default: read stdin)"},
			&cli.BoolFlag{Name: "raw", Usage: "Print only the reply markdown"},
		},
		Action: func(c *cli.Context) error {
			text := c.String("text")
			if text == "" {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("text must be given with --text or piped via stdin"))
				}
				var err error
				text, err = readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			}

			r, err := env.resolver(env.cfg.Identity)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Preview(c.Context, r, env.formatter(), ops.PreviewInput{Text: text})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("raw") {
				_, err := fmt.Fprintln(os.Stdout, output.Reply)
				return err
			}
			return outputJSON(output)
		},
	}
}

// cardsCmd creates the cards command.
func cardsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "cards",
		Usage: "List corpus cards",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"k", "kind"}, Usage: "creature|item|action|support|other"},
			&cli.StringFlag{Name: "name-prefix", Usage: "Filter by name prefix"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			r, err := env.resolver(env.cfg.Identity)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.ListCards(r.Corpus(), ops.ListCardsInput{
				Kind:       c.String("type"),
				NamePrefix: c.String("name-prefix"),
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List logged replies, or show one by id",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Aliases: []string{"c"}, Usage: "Filter by channel"},
			&cli.StringFlag{Name: "event-id", Usage: "Filter by answered event"},
			&cli.StringFlag{Name: "run-id", Usage: "Filter by poller run"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			database, err := env.database()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			if c.NArg() > 0 {
				output, err := ops.GetReply(database, ops.GetReplyInput{ID: c.Args().First()})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := ops.History(database, ops.HistoryInput{
				Channel: c.String("channel"),
				EventID: c.String("event-id"),
				RunID:   c.String("run-id"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// lookupsCmd creates the lookups command.
func lookupsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "lookups",
		Usage: "Show lookup counts per card and outcome",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "outcome", Usage: "resolved|fallback|not_found"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Filter by card name"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			database, err := env.database()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			output, err := ops.LookupStats(database, ops.LookupStatsInput{
				Outcome: c.String("outcome"),
				Name:    c.String("name"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the read-only web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			database, err := env.database()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			r, err := env.resolver(env.cfg.Identity)
			if err != nil {
				return outputError(err)
			}
			srv, err := web.NewServer(database, r, env.formatter(), Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return web.Run(ctx, srv)
		},
	}
}

// mcpCmd creates the mcp command, the explicit form of stdin MCP mode.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			return serveMCP(env)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cbErr *errors.CardbotError
	if stderrors.As(err, &cbErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cbErr.Code, cbErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most maxBytes from stdin.
func readStdin(maxBytes int) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, int64(maxBytes)+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxBytes {
		return "", fmt.Errorf("input exceeds %d bytes", maxBytes)
	}
	return strings.TrimSpace(string(data)), nil
}
