package transformer

import (
	"fmt"
	"log"

	"tvetl/internal/nullable"
	"tvetl/internal/table"
)

// GenreColumns is the Genres junction table layout.
var GenreColumns = []string{"id", "show_id", "genre"}

// DecodeError reports a show whose genre attribute could not be decoded
// into a sequence. It aborts the genre step: treating the show as having no
// genres would silently lose data.
type DecodeError struct {
	ShowID any
	Raw    any
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("transformer: decode genres for show %v (%.60v): %v", e.ShowID, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GenreStep explodes the genres column of Shows into the Genres table.
//
// Each show contributes one (show_id, genre) pair per element of its genre
// sequence, in order. Pairs with an absent show id or an absent label are
// dropped, then ids 1..n are assigned to the survivors in row order. The
// genres column is removed from Shows and any other list cell is flattened
// to JSON text, so Shows leaves this step with no multi-valued columns.
type GenreStep struct{}

func (GenreStep) Name() string { return "genres" }

func (GenreStep) Apply(in Tables) (Tables, error) {
	genres, shows, err := ExplodeGenres(in.Shows)
	if err != nil {
		return Tables{}, err
	}
	out := in
	out.Shows = shows
	out.Genres = genres
	return out, nil
}

// ExplodeGenres is GenreStep on a bare Shows table.
func ExplodeGenres(shows *table.Table) (genres, rest *table.Table, err error) {
	genres = table.New(GenresTable, GenreColumns...)
	idCol, genreCol := shows.Index("id"), shows.Index("genres")

	var nullShow, nullLabel int
	if genreCol >= 0 {
		for _, r := range shows.Rows {
			var showID any
			if idCol >= 0 {
				showID = r[idCol]
			}
			labels, err := decodeGenres(r[genreCol])
			if err != nil {
				log.Printf("transformer: genres show_id=%v err=%v", showID, err)
				return nil, nil, &DecodeError{ShowID: showID, Raw: r[genreCol], Err: err}
			}
			for _, l := range labels {
				switch {
				case showID == nil:
					nullShow++
				case !l.Valid:
					nullLabel++
				default:
					genres.Rows = append(genres.Rows, table.Row{int64(len(genres.Rows) + 1), showID, l.V})
				}
			}
		}
	}

	rest, err = shows.Drop("genres").FlattenLists()
	if err != nil {
		return nil, nil, fmt.Errorf("transformer: flatten shows: %w", err)
	}
	log.Printf("transformer: genres shows=%d pairs=%d dropped_null_show=%d dropped_null_label=%d",
		shows.Len(), genres.Len(), nullShow, nullLabel)
	return genres, rest, nil
}

// decodeGenres turns a genres cell into labels. Absent cells and empty
// sequences yield no labels.
func decodeGenres(v any) ([]nullable.Value[string], error) {
	switch g := v.(type) {
	case nil:
		return nil, nil
	case []string:
		out := make([]nullable.Value[string], len(g))
		for i, s := range g {
			out[i] = nullable.Of(s)
		}
		return out, nil
	case string:
		return ParseLabelList(g)
	default:
		return nil, fmt.Errorf("unsupported genres value of type %T", v)
	}
}
