// SPDX-License-Identifier: MIT

package epg

import (
	"fmt"
	"path/filepath"
	"sort"

	applog "github.com/teamarr/teamarr/internal/log"
)

const (
	teamsFileName  = "teams.xml"
	eventsFileName = "events.xml"

	// DefaultPublishedName is the published guide file unless configured.
	DefaultPublishedName = "teamarr.xml"
)

// Consolidator maintains the artefact chain in one directory: per-group
// event_epg_<group>.xml fragments merge into events.xml, which merges with
// teams.xml into the published file. Every write is atomic.
type Consolidator struct {
	dir       string
	published string
}

// NewConsolidator binds a consolidator to a data directory. An empty
// publishedName falls back to DefaultPublishedName.
func NewConsolidator(dir, publishedName string) *Consolidator {
	if publishedName == "" {
		publishedName = DefaultPublishedName
	}
	return &Consolidator{dir: dir, published: publishedName}
}

// FragmentPath returns the per-group fragment location.
func (c *Consolidator) FragmentPath(groupID int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("event_epg_%d.xml", groupID))
}

// TeamsPath returns the team-channel guide location.
func (c *Consolidator) TeamsPath() string {
	return filepath.Join(c.dir, teamsFileName)
}

// EventsPath returns the consolidated event guide location.
func (c *Consolidator) EventsPath() string {
	return filepath.Join(c.dir, eventsFileName)
}

// PublishedPath returns the final published guide location.
func (c *Consolidator) PublishedPath() string {
	return filepath.Join(c.dir, c.published)
}

// WriteFragment atomically writes one group's fragment.
func (c *Consolidator) WriteFragment(groupID int64, tv *TV) error {
	return WriteFile(tv, c.FragmentPath(groupID))
}

// WriteTeams atomically writes the team-channel guide.
func (c *Consolidator) WriteTeams(tv *TV) error {
	return WriteFile(tv, c.TeamsPath())
}

// Rebuild regenerates the downstream artefacts: all group fragments merge
// into events.xml, then teams.xml and events.xml merge into the published
// file. With no fragments present the outputs are empty but well-formed
// documents, so consumers never see a missing file.
func (c *Consolidator) Rebuild() error {
	logger := applog.WithComponent("consolidator")

	fragments, err := filepath.Glob(filepath.Join(c.dir, "event_epg_*.xml"))
	if err != nil {
		return err
	}
	sort.Strings(fragments)

	events := NewTV()
	for _, path := range fragments {
		frag, err := ReadFile(path)
		if err != nil {
			return fmt.Errorf("read fragment %s: %w", path, err)
		}
		merge(events, frag)
	}
	if err := WriteFile(events, c.EventsPath()); err != nil {
		return fmt.Errorf("write events guide: %w", err)
	}

	teams, err := ReadFile(c.TeamsPath())
	if err != nil {
		return fmt.Errorf("read teams guide: %w", err)
	}

	published := NewTV()
	merge(published, teams)
	merge(published, events)
	if err := WriteFile(published, c.PublishedPath()); err != nil {
		return fmt.Errorf("write published guide: %w", err)
	}

	logger.Info().
		Str("event", "epg.published").
		Int("fragments", len(fragments)).
		Int("channels", len(published.Channels)).
		Int("programmes", len(published.Programs)).
		Str("path", c.PublishedPath()).
		Msg("published guide rebuilt")
	return nil
}

// merge appends src into dst, deduplicating declared channels by id
// (first declaration wins). Programmes are never deduplicated.
func merge(dst, src *TV) {
	seen := make(map[string]bool, len(dst.Channels))
	for _, ch := range dst.Channels {
		seen[ch.ID] = true
	}
	for _, ch := range src.Channels {
		if ch.ID == "" || seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		dst.Channels = append(dst.Channels, ch)
	}
	dst.Programs = append(dst.Programs, src.Programs...)
}
