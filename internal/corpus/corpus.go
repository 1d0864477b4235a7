package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hpungsan/cardbot/internal/card"
	"github.com/hpungsan/cardbot/internal/errors"
)

// Corpus is the immutable, in-memory card database. It is built once at
// startup and shared by reference; no method mutates it.
type Corpus struct {
	records []card.Record
	keys    []string       // normalized names, parallel to records
	byKey   map[string]int // exact normalized name -> index (first wins)
	policy  MatchPolicy
	source  string
}

// rawRecord mirrors one entry of the corpus file. Numeric stats are optional.
type rawRecord struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Attributes []string `json:"attributes"`
	Rarity     string   `json:"rarity"`
	Cost       int      `json:"cost"`
	Text       string   `json:"text"`
	Attack     *int     `json:"attack"`
	Health     *int     `json:"health"`
}

// LoadFile reads a corpus file (a JSON array of card records).
func LoadFile(path string, policy MatchPolicy) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewCorpusInvalid(path, err)
	}
	defer f.Close()
	return load(f, path, policy)
}

// Load reads a corpus from r. source is only used in error messages.
func Load(r io.Reader, source string, policy MatchPolicy) (*Corpus, error) {
	return load(r, source, policy)
}

// Reload builds a fresh corpus from r using the same match policy.
// The receiver is left untouched.
func (c *Corpus) Reload(r io.Reader) (*Corpus, error) {
	return load(r, c.source, c.policy)
}

// New builds a corpus directly from records. Records with an empty
// normalized name are skipped.
func New(records []card.Record, policy MatchPolicy) (*Corpus, error) {
	return build(records, "memory", policy)
}

func load(r io.Reader, source string, policy MatchPolicy) (*Corpus, error) {
	var raw []rawRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, errors.NewCorpusEmpty(source)
		}
		return nil, errors.NewCorpusInvalid(source, err)
	}

	records := make([]card.Record, 0, len(raw))
	for i, rr := range raw {
		if strings.TrimSpace(rr.Name) == "" {
			return nil, errors.NewCorpusInvalid(source, fmt.Errorf("record %d has no name", i))
		}
		rec := card.Record{
			Name:       strings.TrimSpace(rr.Name),
			Kind:       card.ParseKind(rr.Type),
			Attributes: rr.Attributes,
			Rarity:     rr.Rarity,
			Cost:       rr.Cost,
			Text:       rr.Text,
		}
		if rec.Kind == card.KindCreature {
			if rr.Attack != nil {
				rec.Power = *rr.Attack
			}
			if rr.Health != nil {
				rec.Health = *rr.Health
			}
		}
		records = append(records, rec)
	}

	return build(records, source, policy)
}

func build(records []card.Record, source string, policy MatchPolicy) (*Corpus, error) {
	c := &Corpus{
		records: make([]card.Record, 0, len(records)),
		keys:    make([]string, 0, len(records)),
		byKey:   make(map[string]int, len(records)),
		policy:  policy.withDefaults(),
		source:  source,
	}
	for _, rec := range records {
		key := rec.Key()
		if key == "" {
			continue
		}
		if _, dup := c.byKey[key]; !dup {
			c.byKey[key] = len(c.records)
		}
		c.records = append(c.records, rec)
		c.keys = append(c.keys, key)
	}
	if len(c.records) == 0 {
		return nil, errors.NewCorpusEmpty(source)
	}
	return c, nil
}

// Len returns the number of records.
func (c *Corpus) Len() int {
	return len(c.records)
}

// Source returns where the corpus was loaded from.
func (c *Corpus) Source() string {
	return c.source
}

// Policy returns the match policy in effect.
func (c *Corpus) Policy() MatchPolicy {
	return c.policy
}

// Records returns a copy of all records in file order.
func (c *Corpus) Records() []card.Record {
	out := make([]card.Record, len(c.records))
	copy(out, c.records)
	return out
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Kind       card.Kind
	NamePrefix string // compared against normalized names
	Limit      int
	Offset     int
}

// List returns records sorted by name with the filter applied, plus the
// total number of matches before pagination.
func (c *Corpus) List(f ListFilter) ([]card.Record, int) {
	prefix := card.NormalizeKey(f.NamePrefix)

	matched := make([]int, 0, len(c.records))
	for i, rec := range c.records {
		if f.Kind != "" && rec.Kind != f.Kind {
			continue
		}
		if prefix != "" && !strings.HasPrefix(c.keys[i], prefix) {
			continue
		}
		matched = append(matched, i)
	}
	sort.SliceStable(matched, func(a, b int) bool {
		return c.keys[matched[a]] < c.keys[matched[b]]
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}

	out := make([]card.Record, 0, end-start)
	for _, i := range matched[start:end] {
		out = append(out, c.records[i])
	}
	return out, total
}
