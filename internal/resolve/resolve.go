package resolve

import (
	"context"

	"github.com/gammazero/workerpool"

	"github.com/hpungsan/cardbot/internal/card"
	"github.com/hpungsan/cardbot/internal/corpus"
	"github.com/hpungsan/cardbot/internal/imagecheck"
)

// Outcome describes how a single mention was resolved.
type Outcome string

const (
	OutcomeResolved Outcome = "resolved" // card found, image verified
	OutcomeFallback Outcome = "fallback" // card found, fallback image used
	OutcomeNotFound Outcome = "not_found"
	OutcomeSelf     Outcome = "self" // the bot's own card, no image check
)

// DefaultWorkers bounds concurrent image checks per event.
const DefaultWorkers = 4

// Resolution pairs a view with the way it was produced.
type Resolution struct {
	View    card.View
	Outcome Outcome
}

// Options configures a Resolver.
type Options struct {
	// Template builds image URLs from normalized keys.
	Template string

	// Fallback is used when the image check fails.
	Fallback string

	// Workers bounds concurrent image checks (default 4).
	Workers int
}

// Resolver turns raw mentions into card views.
type Resolver struct {
	corpus   *corpus.Corpus
	checker  imagecheck.Checker
	template string
	fallback string
	workers  int
}

// New creates a Resolver. A nil checker accepts every image URL.
func New(c *corpus.Corpus, checker imagecheck.Checker, opts Options) *Resolver {
	if opts.Template == "" {
		opts.Template = imagecheck.DefaultTemplate
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Resolver{
		corpus:   c,
		checker:  checker,
		template: opts.Template,
		fallback: opts.Fallback,
		workers:  opts.Workers,
	}
}

// Corpus returns the corpus the resolver reads from.
func (r *Resolver) Corpus() *corpus.Corpus {
	return r.corpus
}

// Resolve returns one view per mention with a non-empty key, in input order.
func (r *Resolver) Resolve(ctx context.Context, mentions []string) []card.View {
	res := r.ResolveAll(ctx, mentions)
	if len(res) == 0 {
		return nil
	}
	views := make([]card.View, len(res))
	for i, x := range res {
		views[i] = x.View
	}
	return views
}

// ResolveAll is Resolve with per-mention outcomes. Image checks run on a
// bounded worker pool; each task writes only its own slot.
func (r *Resolver) ResolveAll(ctx context.Context, mentions []string) []Resolution {
	type pending struct {
		mention string
		key     string
		record  card.Record
		found   bool
		self    bool
	}

	items := make([]pending, 0, len(mentions))
	for _, m := range mentions {
		key := card.NormalizeKey(m)
		if key == "" {
			continue
		}
		p := pending{mention: m, key: key, self: r.corpus.IsSelf(key)}
		if rec := r.corpus.Resolve(key); rec.IsPresent() {
			p.record = rec.MustGet()
			p.found = true
		}
		items = append(items, p)
	}
	if len(items) == 0 {
		return nil
	}

	out := make([]Resolution, len(items))
	wp := workerpool.New(r.workers)
	for i, p := range items {
		if !p.found {
			out[i] = Resolution{View: card.UnknownView(p.mention), Outcome: OutcomeNotFound}
			continue
		}
		if p.self {
			out[i] = Resolution{View: card.NewView(p.mention, p.record, r.fallback), Outcome: OutcomeSelf}
			continue
		}
		wp.Submit(func() {
			out[i] = r.withImage(ctx, p.mention, p.record)
		})
	}
	wp.StopWait()

	return out
}

// Lookup resolves a single name. The bool is false when nothing matched or
// the name normalizes to an empty key.
func (r *Resolver) Lookup(ctx context.Context, name string) (card.View, bool) {
	res := r.ResolveAll(ctx, []string{name})
	if len(res) == 0 {
		return card.UnknownView(name), false
	}
	return res[0].View, res[0].Outcome != OutcomeNotFound
}

func (r *Resolver) withImage(ctx context.Context, mention string, rec card.Record) Resolution {
	url := imagecheck.URLFor(r.template, rec.Key())
	if r.checker == nil || r.checker.Exists(ctx, url) {
		return Resolution{View: card.NewView(mention, rec, url), Outcome: OutcomeResolved}
	}
	return Resolution{View: card.NewView(mention, rec, r.fallback), Outcome: OutcomeFallback}
}
