// Package transformer turns raw schedule records into the relational model
// and cleans it: normalization into Shows and Episodes, column pruning, and
// explosion of the genre attribute into a Genres junction table.
//
// Every step consumes its whole input and returns new tables; no step
// mutates the tables it was given.
package transformer

import "tvetl/internal/table"

// Table names used throughout the pipeline and in the store.
const (
	ShowsTable    = "shows"
	EpisodesTable = "episodes"
	GenresTable   = "genres"
)

// Tables is the set flowing between steps. Genres is nil until the genre
// step has run.
type Tables struct {
	Shows    *table.Table
	Episodes *table.Table
	Genres   *table.Table
}

// All returns the non-nil tables parents first: shows, episodes, genres.
func (t Tables) All() []*table.Table {
	var out []*table.Table
	for _, tb := range []*table.Table{t.Shows, t.Episodes, t.Genres} {
		if tb != nil {
			out = append(out, tb)
		}
	}
	return out
}

// Step is one cleaning transformation.
type Step interface {
	Name() string
	Apply(Tables) (Tables, error)
}

// Chain is an ordered list of steps. The first failing step stops the
// chain and its error is returned unchanged.
type Chain []Step

func (c Chain) Apply(in Tables) (Tables, error) {
	out := in
	for _, s := range c {
		var err error
		if out, err = s.Apply(out); err != nil {
			return Tables{}, err
		}
	}
	return out, nil
}

// Clean is the standard cleaning chain: prune, then explode genres.
func Clean(p Prune) Chain {
	return Chain{p, GenreStep{}}
}
