// Package tvmaze holds the wire model of the TVMaze web schedule feed and the
// means to fetch and decode it. Every scalar field is a nullable.Value so a
// key the feed omits (or sends as null) stays distinguishable from a value
// sent as empty.
package tvmaze

import (
	"bytes"
	"encoding/json"
	"math"

	"tvetl/internal/nullable"
)

// Episode is one raw schedule record: an aired episode with its show
// embedded under _embedded.show.
type Episode struct {
	ID       ID                      `json:"id"`
	Name     nullable.Value[string]  `json:"name"`
	Season   nullable.Value[int64]   `json:"season"`
	Number   nullable.Value[int64]   `json:"number"`
	Type     nullable.Value[string]  `json:"type"`
	Airdate  nullable.Value[string]  `json:"airdate"`
	Airtime  nullable.Value[string]  `json:"airtime"`
	Airstamp nullable.Value[string]  `json:"airstamp"`
	Runtime  nullable.Value[float64] `json:"runtime"`
	Rating   *Rating                 `json:"rating"`
	Embedded struct {
		Show *Show `json:"show"`
	} `json:"_embedded"`
}

// Show is the embedded series description. Genres is kept as raw JSON so
// that a malformed genre attribute survives extraction and is reported by
// the genre step instead of failing the whole record.
type Show struct {
	ID             ID                      `json:"id"`
	URL            nullable.Value[string]  `json:"url"`
	Name           nullable.Value[string]  `json:"name"`
	Type           nullable.Value[string]  `json:"type"`
	Language       nullable.Value[string]  `json:"language"`
	Genres         json.RawMessage         `json:"genres"`
	Status         nullable.Value[string]  `json:"status"`
	Runtime        nullable.Value[float64] `json:"runtime"`
	AverageRuntime nullable.Value[float64] `json:"averageRuntime"`
	Premiered      nullable.Value[string]  `json:"premiered"`
	Ended          nullable.Value[string]  `json:"ended"`
	OfficialSite   nullable.Value[string]  `json:"officialSite"`
	Schedule       *Schedule               `json:"schedule"`
	Rating         *Rating                 `json:"rating"`
	Weight         nullable.Value[float64] `json:"weight"`
	Summary        nullable.Value[string]  `json:"summary"`
	WebChannel     *WebChannel             `json:"webChannel"`
	DVDCountry     *Country                `json:"dvdCountry"`
	Externals      *Externals              `json:"externals"`
	Updated        nullable.Value[int64]   `json:"updated"`
}

type Schedule struct {
	Time nullable.Value[string]   `json:"time"`
	Days nullable.Value[[]string] `json:"days"`
}

type Rating struct {
	Average nullable.Value[float64] `json:"average"`
}

type WebChannel struct {
	Name         nullable.Value[string] `json:"name"`
	OfficialSite nullable.Value[string] `json:"officialSite"`
}

type Country struct {
	Name nullable.Value[string] `json:"name"`
	Code nullable.Value[string] `json:"code"`
}

type Externals struct {
	TVRage  nullable.Value[int64]  `json:"tvrage"`
	TheTVDB nullable.Value[int64]  `json:"thetvdb"`
	IMDB    nullable.Value[string] `json:"imdb"`
}

// ID is an externally assigned identifier. Decoding never fails: anything
// other than an integral JSON number (strings, fractions, objects, zero)
// yields an absent ID, and the store's key constraints deal with it later.
type ID struct {
	V     int64
	Valid bool
}

// IDOf returns a present ID.
func IDOf(v int64) ID { return ID{V: v, Valid: true} }

func (id *ID) UnmarshalJSON(b []byte) error {
	*id = ID{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || (b[0] != '-' && (b[0] < '0' || b[0] > '9')) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return nil
	}
	if v, err := n.Int64(); err == nil {
		if v != 0 {
			*id = IDOf(v)
		}
		return nil
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && f != 0 &&
		f >= math.MinInt64 && f <= math.MaxInt64 {
		*id = IDOf(int64(f))
	}
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(id.V)
}

// Any returns the id as int64, or nil when absent.
func (id ID) Any() any {
	if !id.Valid {
		return nil
	}
	return id.V
}
