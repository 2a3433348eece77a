package coc

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp handles the Clash of Clans API time format
// (e.g. 20160212T091502.000Z).
type Timestamp struct {
	time.Time
}

const cocTimeLayout = "20060102T150405.000Z"

// UnmarshalJSON parses the API time format; an empty or null value
// leaves the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(cocTimeLayout, raw)
	if err != nil {
		return fmt.Errorf("parse coc timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON renders the API time format.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.UTC().Format(cocTimeLayout) + `"`), nil
}

// Player is a player profile from /players/{tag}
type Player struct {
	Name              string        `json:"name"`
	Tag               string        `json:"tag"`
	ExpLevel          int           `json:"expLevel"`
	TownHallLevel     int           `json:"townHallLevel"`
	BuilderHallLevel  int           `json:"builderHallLevel"`
	Trophies          int           `json:"trophies"`
	BestTrophies      int           `json:"bestTrophies"`
	WarStars          int           `json:"warStars"`
	AttackWins        int           `json:"attackWins"`
	DefenseWins       int           `json:"defenseWins"`
	Donations         int           `json:"donations"`
	DonationsReceived int           `json:"donationsReceived"`
	Role              string        `json:"role"`
	Clan              *PlayerClan   `json:"clan"`
	League            *League       `json:"league"`
	Heroes            []Unit        `json:"heroes"`
	Troops            []Unit        `json:"troops"`
	Spells            []Unit        `json:"spells"`
	Achievements      []Achievement `json:"achievements"`
}

// PlayerClan is the clan summary embedded in a player profile
type PlayerClan struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// League is a trophy league
type League struct {
	Name string `json:"name"`
}

// Unit is a hero, troop, or spell with its upgrade progress
type Unit struct {
	Name     string `json:"name"`
	Level    int    `json:"level"`
	MaxLevel int    `json:"maxLevel"`
	Village  string `json:"village"`
}

// Achievement is one player achievement
type Achievement struct {
	Name   string `json:"name"`
	Stars  int    `json:"stars"`
	Value  int    `json:"value"`
	Target int    `json:"target"`
	Info   string `json:"info"`
}

// Clan is a clan profile from /clans/{tag}
type Clan struct {
	Name        string       `json:"name"`
	Tag         string       `json:"tag"`
	ClanLevel   int          `json:"clanLevel"`
	Members     int          `json:"members"`
	WarWins     int          `json:"warWins"`
	WarLosses   int          `json:"warLosses"`
	WarTies     int          `json:"warTies"`
	MemberList  []ClanMember `json:"memberList"`
	Description string       `json:"description"`
}

// ClanMember is one member in a clan profile
type ClanMember struct {
	Name              string `json:"name"`
	Tag               string `json:"tag"`
	Role              string `json:"role"`
	Trophies          int    `json:"trophies"`
	Donations         int    `json:"donations"`
	DonationsReceived int    `json:"donationsReceived"`
}

// War state values returned by /clans/{tag}/currentwar
const (
	WarStateNotInWar      = "notInWar"
	WarStateInMatchmaking = "inMatchmaking"
	WarStatePreparation   = "preparation"
	WarStateInWar         = "inWar"
	WarStateEnded         = "warEnded"
)

// CurrentWar is the live war snapshot for a clan
type CurrentWar struct {
	State                string    `json:"state"`
	TeamSize             int       `json:"teamSize"`
	AttacksPerMember     int       `json:"attacksPerMember"`
	PreparationStartTime Timestamp `json:"preparationStartTime"`
	StartTime            Timestamp `json:"startTime"`
	EndTime              Timestamp `json:"endTime"`
	Clan                 WarClan   `json:"clan"`
	Opponent             WarClan   `json:"opponent"`
}

// WarClan is one side of a war
type WarClan struct {
	Name                  string      `json:"name"`
	Tag                   string      `json:"tag"`
	Stars                 int         `json:"stars"`
	Attacks               int         `json:"attacks"`
	DestructionPercentage float64     `json:"destructionPercentage"`
	Members               []WarMember `json:"members"`
}

// WarMember is one participant in a war
type WarMember struct {
	Name        string      `json:"name"`
	Tag         string      `json:"tag"`
	MapPosition int         `json:"mapPosition"`
	Attacks     []WarAttack `json:"attacks"`
}

// WarAttack is one attack in a war
type WarAttack struct {
	AttackerTag           string `json:"attackerTag"`
	DefenderTag           string `json:"defenderTag"`
	Stars                 int    `json:"stars"`
	DestructionPercentage int    `json:"destructionPercentage"`
	Order                 int    `json:"order"`
}

// Result summarizes a finished or in-progress war from the home
// clan's perspective.
func (w *CurrentWar) Result() string {
	switch {
	case w.Clan.Stars > w.Opponent.Stars:
		return "won"
	case w.Clan.Stars < w.Opponent.Stars:
		return "lost"
	case w.Clan.DestructionPercentage > w.Opponent.DestructionPercentage:
		return "won"
	case w.Clan.DestructionPercentage < w.Opponent.DestructionPercentage:
		return "lost"
	default:
		return "tied"
	}
}
