// SPDX-License-Identifier: MIT

package match

import (
	"context"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/fuzzy"
	applog "github.com/teamarr/teamarr/internal/log"
)

// ExclusionReason values recorded on excluded or unmatched streams.
const (
	ReasonException      = "exception_keyword"
	ReasonNotInWhitelist = "league_not_in_whitelist"
	ReasonNoEventFound   = "no_event_found"
)

// Stream is one host stream under evaluation.
type Stream struct {
	ID   string
	Name string
}

// StreamResult is the outcome for one stream.
type StreamResult struct {
	Stream    Stream
	Matched   bool
	Included  bool
	Exception bool
	Reason    string
	League    string
	Event     core.Event
	Score     int
	Algorithm fuzzy.Algorithm
}

// BatchResult aggregates a multi-league matching pass.
type BatchResult struct {
	Results   []StreamResult
	Total     int
	Matched   int
	Included  int
	Excluded  int
	Unmatched int
	Exception int
}

// MatchRate is matched over total excluding exceptions, in percent.
func (b *BatchResult) MatchRate() float64 {
	denom := b.Total - b.Exception
	if denom <= 0 {
		return 0
	}
	return float64(b.Matched) * 100 / float64(denom)
}

// eventSource is the slice of the sports data service the matcher needs.
type eventSource interface {
	Events(ctx context.Context, league string, date time.Time) []core.Event
}

// MultiLeague matches streams across an ordered list of leagues.
type MultiLeague struct {
	source  eventSource
	matcher *fuzzy.Matcher
}

// NewMultiLeague builds a matcher over the given event source. A nil fuzzy
// matcher gets the default threshold.
func NewMultiLeague(source eventSource, matcher *fuzzy.Matcher) *MultiLeague {
	if matcher == nil {
		matcher = fuzzy.NewMatcher(fuzzy.DefaultThreshold)
	}
	return &MultiLeague{source: source, matcher: matcher}
}

// Options configure one matching pass.
type Options struct {
	// Leagues is the ordered list to search; the first league with a
	// matching event wins.
	Leagues []string
	// Whitelist restricts which matched leagues produce channels. Empty
	// means every league is included.
	Whitelist []string
	// ExceptionKeywords flag streams excluded from normal matching.
	ExceptionKeywords []string
	Date              time.Time
}

// MatchStreams resolves every stream against the leagues' events for the
// date. Events are fetched once per league and reused across streams; an
// empty batch fetches nothing, so fully cached runs never hit the
// scoreboard.
func (m *MultiLeague) MatchStreams(ctx context.Context, streams []Stream, opts Options) *BatchResult {
	if len(streams) == 0 {
		return &BatchResult{}
	}

	logger := applog.WithComponentFromContext(ctx, "match")

	leagues := make([]*SingleLeague, 0, len(opts.Leagues))
	leagueNames := make([]string, 0, len(opts.Leagues))
	for _, league := range opts.Leagues {
		events := m.source.Events(ctx, league, opts.Date)
		leagues = append(leagues, NewSingleLeague(m.matcher, events))
		leagueNames = append(leagueNames, league)
		logger.Debug().
			Str("event", "match.league_loaded").
			Str("league", league).
			Int("events", len(events)).
			Msg("loaded league events")
	}

	whitelist := make(map[string]bool, len(opts.Whitelist))
	for _, l := range opts.Whitelist {
		whitelist[l] = true
	}

	batch := &BatchResult{Total: len(streams)}
	for _, stream := range streams {
		r := m.matchOne(stream, leagues, leagueNames, whitelist, opts.ExceptionKeywords)
		batch.Results = append(batch.Results, r)
		switch {
		case r.Exception:
			batch.Exception++
		case !r.Matched:
			batch.Unmatched++
		default:
			batch.Matched++
			if r.Included {
				batch.Included++
			} else {
				batch.Excluded++
			}
		}
	}
	return batch
}

func (m *MultiLeague) matchOne(stream Stream, leagues []*SingleLeague, leagueNames []string, whitelist map[string]bool, exceptions []string) StreamResult {
	r := StreamResult{Stream: stream}

	lower := strings.ToLower(stream.Name)
	for _, kw := range exceptions {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			r.Exception = true
			r.Reason = ReasonException
			return r
		}
	}

	for i, sl := range leagues {
		res, ok := sl.Resolve(stream.Name)
		if !ok {
			continue
		}
		r.Matched = true
		r.League = leagueNames[i]
		r.Event = res.Event
		r.Score = res.Score
		r.Algorithm = res.Algorithm
		if len(whitelist) > 0 && !whitelist[r.League] {
			r.Reason = ReasonNotInWhitelist
			return r
		}
		r.Included = true
		return r
	}

	r.Reason = ReasonNoEventFound
	return r
}
