package transformer

import "log"

// Prune removes columns that the destination model does not carry. Names
// missing from a table are ignored, so pruning twice is the same as once.
type Prune struct {
	Shows    []string
	Episodes []string
}

func (Prune) Name() string { return "prune" }

// Apply returns narrowed copies of Shows and Episodes. Genres passes through.
func (p Prune) Apply(in Tables) (Tables, error) {
	out := in
	if in.Shows != nil {
		out.Shows = in.Shows.Drop(p.Shows...)
	}
	if in.Episodes != nil {
		out.Episodes = in.Episodes.Drop(p.Episodes...)
	}
	log.Printf("transformer: prune shows=%v episodes=%v", p.Shows, p.Episodes)
	return out, nil
}
