// SPDX-License-Identifier: MIT

// Package match resolves host stream names to provider events, first within
// a single league, then across an ordered league list with exception and
// whitelist handling.
package match

import (
	"github.com/teamarr/teamarr/internal/core"
	"github.com/teamarr/teamarr/internal/fuzzy"
)

// eventPatterns is one event with its precomputed search patterns.
type eventPatterns struct {
	event core.Event
	home  []string
	away  []string
	names []string
}

// Result is one stream resolved against a league's events.
type Result struct {
	Event     core.Event
	Score     int
	Algorithm fuzzy.Algorithm
}

// SingleLeague matches streams against one league's event list for a date.
type SingleLeague struct {
	matcher *fuzzy.Matcher
	events  []eventPatterns
}

// NewSingleLeague precomputes patterns for the given events. The matcher
// may be shared across leagues.
func NewSingleLeague(matcher *fuzzy.Matcher, events []core.Event) *SingleLeague {
	sl := &SingleLeague{
		matcher: matcher,
		events:  make([]eventPatterns, 0, len(events)),
	}
	for _, ev := range events {
		ep := eventPatterns{
			event: ev,
			home:  fuzzy.TeamPatterns(ev.HomeTeam),
			away:  fuzzy.TeamPatterns(ev.AwayTeam),
		}
		for _, n := range []string{ev.Name, ev.ShortName} {
			if p := fuzzy.Normalize(n); len(p) >= 2 {
				ep.names = append(ep.names, p)
			}
		}
		sl.events = append(sl.events, ep)
	}
	return sl
}

// Resolve matches one stream name. A name that decomposes into away/home
// sides is scored side against side first; otherwise both teams' patterns
// must clear the threshold against the whole name. The winner is the event
// with the highest combined score, ties broken by earliest start. The last
// resort is event-name matching.
func (sl *SingleLeague) Resolve(streamName string) (*Result, bool) {
	if away, home, ok := fuzzy.SplitMatchup(fuzzy.Normalize(streamName)); ok {
		if r, found := sl.resolveSides(away, home); found {
			return r, true
		}
	}

	var (
		best      *Result
		bestTotal int
	)
	for i := range sl.events {
		ep := &sl.events[i]
		home := sl.matcher.MatchesAny(ep.home, streamName)
		if !home.Matched {
			continue
		}
		away := sl.matcher.MatchesAny(ep.away, streamName)
		if !away.Matched {
			continue
		}
		total := home.Score + away.Score
		if best != nil && (total < bestTotal ||
			(total == bestTotal && !ep.event.StartTime.Before(best.Event.StartTime))) {
			continue
		}
		algo := home.Algorithm
		score := home.Score
		if away.Score < score {
			score = away.Score
			algo = away.Algorithm
		}
		best = &Result{Event: ep.event, Score: score, Algorithm: algo}
		bestTotal = total
	}
	if best != nil {
		return best, true
	}

	for i := range sl.events {
		ep := &sl.events[i]
		m := sl.matcher.MatchesAny(ep.names, streamName)
		if !m.Matched {
			continue
		}
		if best != nil && (m.Score < best.Score ||
			(m.Score == best.Score && !ep.event.StartTime.Before(best.Event.StartTime))) {
			continue
		}
		best = &Result{Event: ep.event, Score: m.Score, Algorithm: m.Algorithm}
	}
	return best, best != nil
}

// resolveSides scores a decomposed matchup one side per team. Both
// orientations are tried; stream names do not reliably list away first.
func (sl *SingleLeague) resolveSides(side1, side2 string) (*Result, bool) {
	var (
		best      *Result
		bestTotal int
	)
	for i := range sl.events {
		ep := &sl.events[i]
		total, score, algo, ok := ep.sideScores(sl.matcher, side1, side2)
		if !ok {
			continue
		}
		if best != nil && (total < bestTotal ||
			(total == bestTotal && !ep.event.StartTime.Before(best.Event.StartTime))) {
			continue
		}
		best = &Result{Event: ep.event, Score: score, Algorithm: algo}
		bestTotal = total
	}
	return best, best != nil
}

// sideScores requires each side to clear one team's patterns. The result
// carries the combined total plus the weaker side's score and algorithm.
func (ep *eventPatterns) sideScores(m *fuzzy.Matcher, side1, side2 string) (total, score int, algo fuzzy.Algorithm, ok bool) {
	try := func(awaySide, homeSide string) (int, int, fuzzy.Algorithm, bool) {
		away := m.MatchesAny(ep.away, awaySide)
		if !away.Matched {
			return 0, 0, "", false
		}
		home := m.MatchesAny(ep.home, homeSide)
		if !home.Matched {
			return 0, 0, "", false
		}
		sc, al := away.Score, away.Algorithm
		if home.Score < sc {
			sc, al = home.Score, home.Algorithm
		}
		return away.Score + home.Score, sc, al, true
	}

	t1, sc1, a1, ok1 := try(side1, side2)
	t2, sc2, a2, ok2 := try(side2, side1)
	switch {
	case ok1 && (!ok2 || t1 >= t2):
		return t1, sc1, a1, true
	case ok2:
		return t2, sc2, a2, true
	}
	return 0, 0, "", false
}
