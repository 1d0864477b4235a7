package bot

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hpungsan/cardbot/internal/card"
	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/dedup"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/logging"
	"github.com/hpungsan/cardbot/internal/reply"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/transport"
)

// Outcome is what happened to a single event.
type Outcome string

const (
	OutcomeSkippedSeen Outcome = "skipped-seen"
	OutcomeNoAction    Outcome = "no-action"
	OutcomeReplied     Outcome = "replied"
	OutcomeFailed      Outcome = "failed"
)

// Report aggregates the outcomes of one cycle.
type Report struct {
	Fetched  int `json:"fetched"`
	Skipped  int `json:"skipped"`
	NoAction int `json:"no_action"`
	Replied  int `json:"replied"`
	Failed   int `json:"failed"`
}

func (r *Report) add(o Outcome) {
	r.Fetched++
	switch o {
	case OutcomeSkippedSeen:
		r.Skipped++
	case OutcomeNoAction:
		r.NoAction++
	case OutcomeReplied:
		r.Replied++
	case OutcomeFailed:
		r.Failed++
	}
}

func (r *Report) merge(o Report) {
	r.Fetched += o.Fetched
	r.Skipped += o.Skipped
	r.NoAction += o.NoAction
	r.Replied += o.Replied
	r.Failed += o.Failed
}

// Options configures a Bot.
type Options struct {
	Channel      string
	BatchSize    int
	PollInterval time.Duration
	SplitStreams bool

	// Identity is the bot's own account name. Empty means ask the
	// transport on Start.
	Identity string
}

// Bot is the poll loop: fetch, detect mentions, reply once per event.
type Bot struct {
	transport transport.Transport
	resolver  *resolve.Resolver
	formatter reply.Formatter
	window    *dedup.Window
	store     *sql.DB
	opts      Options
	limiter   *rate.Limiter
	runID     string
}

// New creates a Bot. store may be nil, in which case nothing is logged to
// the database.
func New(t transport.Transport, r *resolve.Resolver, f reply.Formatter, w *dedup.Window, store *sql.DB, opts Options) *Bot {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	limit := rate.Inf
	if opts.PollInterval > 0 {
		limit = rate.Every(opts.PollInterval)
	}
	return &Bot{
		transport: t,
		resolver:  r,
		formatter: f,
		window:    w,
		store:     store,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, 1),
		runID:     db.NewID(),
	}
}

// RunID identifies this process's rows in the reply log.
func (b *Bot) RunID() string {
	return b.runID
}

// Identity returns the bot account name, resolving it through the
// transport the first time. A failure is fatal.
func (b *Bot) Identity(ctx context.Context) (string, error) {
	if b.opts.Identity != "" {
		return b.opts.Identity, nil
	}
	id, err := b.transport.Identity(ctx)
	if err != nil {
		return "", errors.NewTransport("identity", err)
	}
	b.opts.Identity = id
	return id, nil
}

// Run polls until ctx is cancelled or a fetch fails. Cancellation returns nil.
func (b *Bot) Run(ctx context.Context) error {
	if _, err := b.Identity(ctx); err != nil {
		return err
	}
	ctx = logging.WithFields(ctx, logging.Fields{Channel: b.opts.Channel, RunID: b.runID})
	slog.InfoContext(ctx, "poll loop started", "batch_size", b.opts.BatchSize, "split_streams", b.opts.SplitStreams)

	var err error
	if b.opts.SplitStreams {
		err = b.runSplit(ctx)
	} else {
		err = b.loop(ctx, func(ctx context.Context) (Report, error) { return b.RunOnce(ctx) })
	}
	if ctx.Err() != nil && (err == nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
		slog.InfoContext(ctx, "poll loop stopped")
		return nil
	}
	return err
}

func (b *Bot) loop(ctx context.Context, cycle func(context.Context) (Report, error)) error {
	for {
		if err := b.limiter.Wait(ctx); err != nil {
			// Wait fails early when the next slot is past the deadline.
			<-ctx.Done()
			return ctx.Err()
		}
		report, err := cycle(ctx)
		if err != nil {
			return err
		}
		if report.Replied > 0 || report.Failed > 0 {
			slog.InfoContext(ctx, "cycle complete",
				"fetched", report.Fetched, "replied", report.Replied, "failed", report.Failed)
		}
	}
}

// runSplit polls each stream in its own task. The window is the only
// shared state; a fatal error in one task cancels the other.
func (b *Bot) runSplit(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.loop(gctx, func(ctx context.Context) (Report, error) {
			r, err := b.pollStream(ctx, transport.KindSubmission)
			b.window.Compact()
			return r, err
		})
	})
	g.Go(func() error {
		return b.loop(gctx, func(ctx context.Context) (Report, error) {
			r, err := b.pollStream(ctx, transport.KindComment)
			b.window.Compact()
			return r, err
		})
	})
	return g.Wait()
}

// RunOnce performs one cycle: submissions, then comments, then compaction.
// Only a fetch failure is returned as an error.
func (b *Bot) RunOnce(ctx context.Context) (Report, error) {
	if _, err := b.Identity(ctx); err != nil {
		return Report{}, err
	}

	var total Report
	for _, kind := range []transport.Kind{transport.KindSubmission, transport.KindComment} {
		r, err := b.pollStream(ctx, kind)
		total.merge(r)
		if err != nil {
			return total, err
		}
	}
	b.window.Compact()
	return total, nil
}

func (b *Bot) pollStream(ctx context.Context, kind transport.Kind) (Report, error) {
	var (
		events []transport.Event
		err    error
		op     string
	)
	if kind == transport.KindSubmission {
		op = "fetch_submissions"
		events, err = b.transport.FetchSubmissions(ctx, b.opts.Channel, b.opts.BatchSize)
	} else {
		op = "fetch_comments"
		events, err = b.transport.FetchComments(ctx, b.opts.Channel, b.opts.BatchSize)
	}
	if err != nil {
		return Report{}, errors.NewTransport(op, err)
	}

	var report Report
	for _, ev := range events {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.add(b.Process(ctx, ev))
	}
	return report, nil
}

// Process handles a single event. The event id is claimed in the window
// first, so concurrent streams never handle the same id twice. The claim is
// committed unless the reply could not be sent.
func (b *Bot) Process(ctx context.Context, ev transport.Event) Outcome {
	if !b.window.TryClaim(ev.ID) {
		return OutcomeSkippedSeen
	}
	ctx = logging.WithFields(ctx, logging.Fields{EventID: ev.ID, Kind: string(ev.Kind)})

	mentions := card.ExtractMentions(ev.Text())
	if len(mentions) == 0 || ev.Saved || ev.Author == b.opts.Identity {
		b.window.Commit(ev.ID)
		return OutcomeNoAction
	}

	resolutions := b.resolver.ResolveAll(ctx, mentions)
	views := make([]card.View, len(resolutions))
	for i, r := range resolutions {
		views[i] = r.View
	}
	text := b.formatter.Format(views)
	if text == "" {
		b.window.Commit(ev.ID)
		return OutcomeNoAction
	}

	slog.InfoContext(ctx, "replying", "author", ev.Author, "mentions", mentions)
	if err := b.transport.Reply(ctx, ev, text); err != nil {
		b.window.Release(ev.ID)
		slog.WarnContext(ctx, "reply failed", "error", errors.NewActionFailed(ev.ID, "reply", err))
		return OutcomeFailed
	}
	b.window.Commit(ev.ID)

	if err := b.transport.MarkSaved(ctx, ev); err != nil {
		slog.WarnContext(ctx, "mark saved failed", "error", errors.NewActionFailed(ev.ID, "save", err))
	}

	b.record(ctx, ev, mentions, text, resolutions)
	return OutcomeReplied
}

// record writes the reply log and lookup counters. Failures are logged only.
func (b *Bot) record(ctx context.Context, ev transport.Event, mentions []string, text string, resolutions []resolve.Resolution) {
	if b.store == nil {
		return
	}
	row := &db.Reply{
		ID:        db.NewID(),
		RunID:     b.runID,
		EventID:   ev.ID,
		EventKind: string(ev.Kind),
		Channel:   b.opts.Channel,
		Author:    ev.Author,
		Mentions:  mentions,
		ReplyText: text,
		CreatedAt: time.Now().Unix(),
	}
	if err := db.InsertReply(b.store, row); err != nil {
		slog.WarnContext(ctx, "reply log write failed", "error", err)
	}
	for _, r := range resolutions {
		if r.Outcome == resolve.OutcomeSelf {
			continue
		}
		if err := db.RecordLookup(b.store, r.View.Key, string(r.Outcome)); err != nil {
			slog.WarnContext(ctx, "lookup stats write failed", "key", r.View.Key, "error", err)
		}
	}
}
