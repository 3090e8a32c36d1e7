package transformer

import (
	"log"

	"tvetl/internal/ordered"
	"tvetl/internal/table"
	"tvetl/internal/tvmaze"
)

// ShowColumns is the Shows layout produced by Normalize.
var ShowColumns = []string{
	"id", "url", "name", "type", "language", "genres", "status",
	"runtime", "averageRuntime", "premiered", "ended", "officialSite",
	"schedule_time", "schedule_days", "rating", "weight", "summary",
	"webChannel_name", "webChannel_site", "dvd_country",
	"externals_tvrage", "externals_thetvdb", "externals_imdb", "updated",
}

// EpisodeColumns is the Episodes layout produced by Normalize.
var EpisodeColumns = []string{
	"id", "name", "season", "number", "type", "airdate", "airtime",
	"airstamp", "runtime", "rating", "show_id",
}

// Normalize projects raw records into Shows and Episodes.
//
// Shows holds one row per distinct show id in first-seen order; a later
// record for an already seen show is ignored entirely. Records without a
// usable show id contribute no show. Episodes holds one row per input
// record in input order, never deduplicated, with show_id set to the
// embedded show's id (nil when absent). Ids are not validated here.
func Normalize(eps []tvmaze.Episode) Tables {
	shows := ordered.New[int64, table.Row](len(eps) / 4)
	episodes := table.New(EpisodesTable, EpisodeColumns...)
	episodes.Rows = make([]table.Row, 0, len(eps))

	for i := range eps {
		ep := &eps[i]
		var showID tvmaze.ID
		if s := ep.Embedded.Show; s != nil {
			showID = s.ID
			if showID.Valid && !shows.Has(showID.V) {
				shows.PutIfAbsent(showID.V, showRow(s))
			}
		}
		episodes.Rows = append(episodes.Rows, episodeRow(ep, showID))
	}

	st := table.New(ShowsTable, ShowColumns...)
	st.Rows = shows.Values()

	log.Printf("transformer: normalize records=%d shows=%d episodes=%d", len(eps), st.Len(), episodes.Len())
	return Tables{Shows: st, Episodes: episodes}
}

func showRow(s *tvmaze.Show) table.Row {
	var (
		schedTime, schedDays    any
		rating                  any
		channelName, channelURL any
		dvd                     any
		tvrage, thetvdb, imdb   any
	)
	if s.Schedule != nil {
		schedTime = s.Schedule.Time.Any()
		if days, ok := s.Schedule.Days.Get(); ok {
			schedDays = nonNilList(days)
		}
	}
	if s.Rating != nil {
		rating = s.Rating.Average.Any()
	}
	if s.WebChannel != nil {
		channelName = s.WebChannel.Name.Any()
		channelURL = s.WebChannel.OfficialSite.Any()
	}
	if s.DVDCountry != nil {
		dvd = s.DVDCountry.Code.Any()
	}
	if s.Externals != nil {
		tvrage = s.Externals.TVRage.Any()
		thetvdb = s.Externals.TheTVDB.Any()
		imdb = s.Externals.IMDB.Any()
	}

	return table.Row{
		s.ID.Any(),
		s.URL.Any(),
		s.Name.Any(),
		s.Type.Any(),
		s.Language.Any(),
		tvmaze.GenresCell(s.Genres),
		s.Status.Any(),
		s.Runtime.Any(),
		s.AverageRuntime.Any(),
		s.Premiered.Any(),
		s.Ended.Any(),
		s.OfficialSite.Any(),
		schedTime,
		schedDays,
		rating,
		s.Weight.Any(),
		s.Summary.Any(),
		channelName,
		channelURL,
		dvd,
		tvrage,
		thetvdb,
		imdb,
		s.Updated.Any(),
	}
}

func episodeRow(e *tvmaze.Episode, showID tvmaze.ID) table.Row {
	var rating any
	if e.Rating != nil {
		rating = e.Rating.Average.Any()
	}
	return table.Row{
		e.ID.Any(),
		e.Name.Any(),
		e.Season.Any(),
		e.Number.Any(),
		e.Type.Any(),
		e.Airdate.Any(),
		e.Airtime.Any(),
		e.Airstamp.Any(),
		e.Runtime.Any(),
		rating,
		showID.Any(),
	}
}

func nonNilList(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
