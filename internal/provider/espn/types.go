// SPDX-License-Identifier: MIT

package espn

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Wire types for the ESPN site API. Only the fields the adapter reads are
// declared; everything else in the payload is ignored.

type scoreboardResponse struct {
	Events []wireEvent `json:"events"`
}

type teamResponse struct {
	Team wireTeam `json:"team"`
}

type summaryResponse struct {
	Header struct {
		ID           string            `json:"id"`
		GameNote     string            `json:"gameNote"`
		Season       *wireSeason       `json:"season"`
		Competitions []wireCompetition `json:"competitions"`
	} `json:"header"`
	Pickcenter []wireOdds `json:"pickcenter"`
}

type wireEvent struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ShortName    string            `json:"shortName"`
	Date         string            `json:"date"`
	Season       *wireSeason       `json:"season"`
	Competitions []wireCompetition `json:"competitions"`
}

type wireSeason struct {
	Year int             `json:"year"`
	Type json.RawMessage `json:"type"`
}

type wireCompetition struct {
	Date        string           `json:"date"`
	Competitors []wireCompetitor `json:"competitors"`
	Status      wireStatus       `json:"status"`
	Venue       *wireVenue       `json:"venue"`
	Broadcasts  []wireBroadcast  `json:"broadcasts"`
	Odds        []wireOdds       `json:"odds"`
}

type wireCompetitor struct {
	ID       string     `json:"id"`
	HomeAway string     `json:"homeAway"`
	Score    flexScore  `json:"score"`
	Team     wireTeam   `json:"team"`
	Streak   flexString `json:"streak"`
}

type wireTeam struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"displayName"`
	ShortDisplayName string     `json:"shortDisplayName"`
	Abbreviation     string     `json:"abbreviation"`
	Logo             string     `json:"logo"`
	Logos            []wireLogo `json:"logos"`
	Color            string     `json:"color"`
}

type wireLogo struct {
	Href string   `json:"href"`
	Rel  []string `json:"rel"`
}

type wireStatus struct {
	Period       int     `json:"period"`
	DisplayClock string  `json:"displayClock"`
	Type         struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"type"`
}

type wireVenue struct {
	FullName string `json:"fullName"`
	Address  struct {
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

type wireBroadcast struct {
	Names []string `json:"names"`
}

type wireOdds struct {
	Details   string     `json:"details"`
	OverUnder flexString `json:"overUnder"`
	Spread    flexString `json:"spread"`
}

// flexScore tolerates scores arriving as a string, a number, or an object
// with a displayValue.
type flexScore struct {
	value *int
}

func (f *flexScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		f.value = parseScoreString(s)
	case '{':
		var obj struct {
			DisplayValue string          `json:"displayValue"`
			Value        json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		if obj.DisplayValue != "" {
			f.value = parseScoreString(obj.DisplayValue)
		} else if len(obj.Value) > 0 {
			var n float64
			if err := json.Unmarshal(obj.Value, &n); err == nil {
				v := int(n)
				f.value = &v
			}
		}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return nil
		}
		v := int(n)
		f.value = &v
	}
	return nil
}

func parseScoreString(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int(n)
	return &v
}

// flexString tolerates values arriving as a string or a number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(data))
	return nil
}
