// SPDX-License-Identifier: MIT

// Package epg turns schedules and matched streams into XMLTV documents and
// maintains the on-disk artefact chain up to the published guide file.
package epg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/teamarr/teamarr/internal/core"
)

// GeneratorName is stamped into the root element of every document.
const GeneratorName = "Teamarr"

// xmltvTimeLayout is the XMLTV timestamp form "YYYYMMDDHHMMSS +HHMM".
const xmltvTimeLayout = "20060102150405 -0700"

type TV struct {
	XMLName   xml.Name    `xml:"tv"`
	Generator string      `xml:"generator-info-name,attr,omitempty"`
	Channels  []Channel   `xml:"channel"`
	Programs  []Programme `xml:"programme"`
}

type Channel struct {
	ID          string      `xml:"id,attr"`
	DisplayName []Localized `xml:"display-name"`
	Icon        *Icon       `xml:"icon,omitempty"`
}

type Icon struct {
	Src string `xml:"src,attr"`
}

type Programme struct {
	Start    string     `xml:"start,attr"`
	Stop     string     `xml:"stop,attr"`
	Channel  string     `xml:"channel,attr"`
	Title    Localized  `xml:"title"`
	Desc     *Localized `xml:"desc,omitempty"`
	Category *Localized `xml:"category,omitempty"`
	Icon     *Icon      `xml:"icon,omitempty"`
}

type Localized struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// NewTV returns an empty document carrying the generator banner.
func NewTV() *TV {
	return &TV{
		Generator: GeneratorName,
		Channels:  []Channel{},
		Programs:  []Programme{},
	}
}

// NewChannel builds a declared channel with an English display name.
func NewChannel(id, name, iconURL string) Channel {
	ch := Channel{
		ID:          id,
		DisplayName: []Localized{{Lang: "en", Value: name}},
	}
	if iconURL != "" {
		ch.Icon = &Icon{Src: iconURL}
	}
	return ch
}

// FormatTime renders a timestamp in XMLTV form. Times with unknown zones
// are emitted as UTC (+0000).
func FormatTime(t time.Time) string {
	return t.Format(xmltvTimeLayout)
}

// ParseTime reads an XMLTV timestamp back.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(xmltvTimeLayout, s)
}

// FromProgramme converts a derived programme into its XMLTV element.
func FromProgramme(p core.Programme) Programme {
	out := Programme{
		Start:   FormatTime(p.Start),
		Stop:    FormatTime(p.Stop),
		Channel: p.ChannelID,
		Title:   Localized{Lang: "en", Value: p.Title},
	}
	if p.Description != "" {
		out.Desc = &Localized{Lang: "en", Value: p.Description}
	}
	category := p.Category
	if category == "" {
		category = "Sports"
	}
	out.Category = &Localized{Lang: "en", Value: category}
	if p.Icon != "" {
		out.Icon = &Icon{Src: p.Icon}
	}
	return out
}

// WriteFile publishes a document atomically: marshal to a temp file in the
// target directory, fsync, rename over the destination.
func WriteFile(tv *TV, path string) error {
	out, err := xml.MarshalIndent(tv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal xmltv: %w", err)
	}
	data := []byte(xml.Header + string(out) + "\n")

	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("write xmltv: %w", err)
	}
	return pf.CloseAtomicallyReplace()
}

// maxXMLSize bounds fragment reads; guide files beyond this are malformed.
const maxXMLSize = 50 * 1024 * 1024

// ReadFile loads an XMLTV document. A missing file returns an empty
// document rather than an error so consumers never special-case it.
func ReadFile(path string) (*TV, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return NewTV(), nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var doc TV
	dec := xml.NewDecoder(io.LimitReader(f, maxXMLSize))
	dec.Strict = true
	dec.Entity = make(map[string]string)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode xmltv %s: %w", path, err)
	}
	return &doc, nil
}
