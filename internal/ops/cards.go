package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/cardbot/internal/card"
	"github.com/hpungsan/cardbot/internal/corpus"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/reply"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// LookupInput contains parameters for the Lookup operation.
type LookupInput struct {
	Names []string // required, max 50
}

// LookupOutput contains the result of the Lookup operation.
type LookupOutput struct {
	Items    []card.View `json:"items"`
	Found    int         `json:"found"`
	NotFound int         `json:"not_found"`
}

// Lookup resolves card names the same way mentions are resolved.
// Unknown names come back as unknown views, not errors.
func Lookup(ctx context.Context, r *resolve.Resolver, input LookupInput) (*LookupOutput, error) {
	names, err := cleanNames(input.Names)
	if err != nil {
		return nil, err
	}

	out := &LookupOutput{Items: make([]card.View, 0, len(names))}
	for _, name := range names {
		v, ok := r.Lookup(ctx, name)
		if ok {
			out.Found++
		} else {
			out.NotFound++
		}
		out.Items = append(out.Items, v)
	}
	return out, nil
}

// GetCardInput contains parameters for the GetCard operation.
type GetCardInput struct {
	Name string // required
}

// GetCard resolves exactly one card and fails with NOT_FOUND otherwise.
func GetCard(ctx context.Context, r *resolve.Resolver, input GetCardInput) (*card.View, error) {
	name := strings.TrimSpace(input.Name)
	if card.NormalizeKey(name) == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}
	v, ok := r.Lookup(ctx, name)
	if !ok {
		return nil, errors.NewNotFound("card", name)
	}
	return &v, nil
}

// PreviewInput contains parameters for the Preview operation.
type PreviewInput struct {
	Text string // required, the text a user would post
}

// PreviewOutput is the reply the bot would post for Text.
type PreviewOutput struct {
	Mentions []string    `json:"mentions"`
	Items    []card.View `json:"items"`
	Reply    string      `json:"reply"`
}

// Preview runs mention extraction, resolution and formatting without
// touching any transport.
func Preview(ctx context.Context, r *resolve.Resolver, f reply.Formatter, input PreviewInput) (*PreviewOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}
	if len(input.Text) > MaxPreviewChars {
		return nil, errors.NewInvalidRequest("text is too long")
	}

	mentions := card.ExtractMentions(input.Text)
	views := r.Resolve(ctx, mentions)

	out := &PreviewOutput{
		Mentions: mentions,
		Items:    views,
		Reply:    f.Format(views),
	}
	if out.Mentions == nil {
		out.Mentions = []string{}
	}
	if out.Items == nil {
		out.Items = []card.View{}
	}
	return out, nil
}

// ListCardsInput contains parameters for the ListCards operation.
type ListCardsInput struct {
	Kind       string // optional: creature, item, action, support, other
	NamePrefix string // optional
	Limit      int    // default: 20, max: 100
	Offset     int
}

// ListCardsOutput contains the result of the ListCards operation.
type ListCardsOutput struct {
	Items      []card.Record `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// ListCards pages through the corpus sorted by normalized name.
func ListCards(c *corpus.Corpus, input ListCardsInput) (*ListCardsOutput, error) {
	var kind card.Kind
	if k := strings.TrimSpace(input.Kind); k != "" {
		kind = card.ParseKind(k)
		if kind == card.KindOther && !strings.EqualFold(k, string(card.KindOther)) {
			return nil, errors.NewInvalidRequest("unknown card type: " + k)
		}
	}

	limit, offset := page(input.Limit, input.Offset)
	items, total := c.List(corpus.ListFilter{
		Kind:       kind,
		NamePrefix: input.NamePrefix,
		Limit:      limit,
		Offset:     offset,
	})

	return &ListCardsOutput{
		Items:      items,
		Pagination: pagination(limit, offset, len(items), total),
		Sort:       "name_asc",
	}, nil
}
