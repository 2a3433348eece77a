// Package guildcfg is the per-guild configuration store for the bot.
// It loads the persisted JSON config file, migrates legacy on-disk
// shapes into the current schema, normalizes every field defensively,
// and writes the whole store back on each mutation.
package guildcfg

import "strings"

// MaxUpgradeLogEntries caps the per-guild upgrade log. Older entries
// are dropped first.
const MaxUpgradeLogEntries = 250

// Dashboard output formats accepted by normalization.
const (
	FormatEmbed = "embed"
	FormatCSV   = "csv"
	FormatBoth  = "both"
)

// Event keys recognized in the event_roles mapping. Unknown keys are
// dropped on normalize.
const (
	EventClanGames   = "clan_games"
	EventRaidWeekend = "raid_weekend"
)

// Channel kinds always present in the channels mapping. The mapping is
// open to extension; these two are seeded on every guild.
const (
	ChannelUpgrade  = "upgrade"
	ChannelDonation = "donation"
)

// GuildConfig is the full per-guild configuration record. Field names
// match the on-disk JSON document.
type GuildConfig struct {
	Clans          map[string]*ClanEntry          `json:"clans"`
	PlayerTags     map[string]string              `json:"player_tags"`
	PlayerAccounts map[string][]PlayerAccount     `json:"player_accounts"`
	UpgradeLog     []map[string]any               `json:"upgrade_log"`
	Channels       map[string]*int64              `json:"channels"`
	EventRoles     map[string]*int64              `json:"event_roles"`
	Schedules      []Schedule                     `json:"schedules"`
	WarAlertState  map[string]map[string][]string `json:"war_alert_state"`
}

// ClanEntry is the configuration for one tracked clan within a guild.
type ClanEntry struct {
	Tag              string           `json:"tag"`
	Alerts           AlertSettings    `json:"alerts"`
	WarPlans         map[string]any   `json:"war_plans"`
	WarNudge         WarNudge         `json:"war_nudge"`
	Dashboard        Dashboard        `json:"dashboard"`
	DonationTracking DonationTracking `json:"donation_tracking"`
	SeasonSummary    SeasonSummary    `json:"season_summary"`
}

// AlertSettings controls war alert delivery for one clan.
type AlertSettings struct {
	Enabled   bool   `json:"enabled"`
	ChannelID *int64 `json:"channel_id"`
}

// WarNudge lists the reasons a member may be nudged during war.
type WarNudge struct {
	Reasons []string `json:"reasons"`
}

// Dashboard configures the periodic clan dashboard report.
type Dashboard struct {
	Modules   []string `json:"modules"`
	Format    string   `json:"format"`
	ChannelID *int64   `json:"channel_id"`
}

// DonationTracking configures donation report metrics.
type DonationTracking struct {
	Metrics   DonationMetrics `json:"metrics"`
	ChannelID *int64          `json:"channel_id"`
}

// DonationMetrics toggles individual donation report sections.
type DonationMetrics struct {
	TopDonors       bool `json:"top_donors"`
	LowDonors       bool `json:"low_donors"`
	NegativeBalance bool `json:"negative_balance"`
}

// SeasonSummary configures the end-of-season summary post.
type SeasonSummary struct {
	ChannelID *int64 `json:"channel_id"`
}

// PlayerAccount links a Discord user to one in-game account.
type PlayerAccount struct {
	Tag   string `json:"tag"`
	Alias string `json:"alias,omitempty"`
}

// Schedule is one recurring report definition.
type Schedule struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	ClanName  string         `json:"clan_name"`
	Frequency string         `json:"frequency"`
	TimeUTC   string         `json:"time_utc"`
	Weekday   *int           `json:"weekday"`
	ChannelID *int64         `json:"channel_id"`
	NextRun   *string        `json:"next_run"`
	Options   map[string]any `json:"options"`
}

// NewGuildConfig returns an empty guild record with every collection
// initialized and the fixed channel and event-role keys seeded.
func NewGuildConfig() *GuildConfig {
	return &GuildConfig{
		Clans:          map[string]*ClanEntry{},
		PlayerTags:     map[string]string{},
		PlayerAccounts: map[string][]PlayerAccount{},
		UpgradeLog:     []map[string]any{},
		Channels:       map[string]*int64{ChannelUpgrade: nil, ChannelDonation: nil},
		EventRoles:     map[string]*int64{EventClanGames: nil, EventRaidWeekend: nil},
		Schedules:      []Schedule{},
		WarAlertState:  map[string]map[string][]string{},
	}
}

// CanonicalClanTag trims surrounding whitespace and upper-cases a clan
// tag. An empty result means the input had no usable content.
func CanonicalClanTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// CanonicalPlayerTag standardizes a player tag to upper case with a
// leading '#'. Returns "" when the input is blank.
func CanonicalPlayerTag(tag string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(tag))
	if cleaned == "" {
		return ""
	}
	if !strings.HasPrefix(cleaned, "#") {
		cleaned = "#" + strings.TrimLeft(cleaned, "#")
	}
	return cleaned
}

// Clone returns a deep copy of the entry. Read accessors hand out
// copies so callers cannot mutate stored state around the setters.
func (e *ClanEntry) Clone() *ClanEntry {
	if e == nil {
		return nil
	}
	out := *e
	out.WarPlans = cloneAnyMap(e.WarPlans)
	out.WarNudge.Reasons = append([]string(nil), e.WarNudge.Reasons...)
	out.Dashboard.Modules = append([]string(nil), e.Dashboard.Modules...)
	out.Alerts.ChannelID = cloneID(e.Alerts.ChannelID)
	out.Dashboard.ChannelID = cloneID(e.Dashboard.ChannelID)
	out.DonationTracking.ChannelID = cloneID(e.DonationTracking.ChannelID)
	out.SeasonSummary.ChannelID = cloneID(e.SeasonSummary.ChannelID)
	return &out
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	out := s
	out.Weekday = cloneIntPtr(s.Weekday)
	out.ChannelID = cloneID(s.ChannelID)
	if s.NextRun != nil {
		next := *s.NextRun
		out.NextRun = &next
	}
	out.Options = cloneAnyMap(s.Options)
	return out
}

// Clone returns a deep copy of the whole guild record.
func (g *GuildConfig) Clone() *GuildConfig {
	if g == nil {
		return nil
	}
	out := NewGuildConfig()
	for name, entry := range g.Clans {
		out.Clans[name] = entry.Clone()
	}
	for user, tag := range g.PlayerTags {
		out.PlayerTags[user] = tag
	}
	for user, accounts := range g.PlayerAccounts {
		out.PlayerAccounts[user] = append([]PlayerAccount(nil), accounts...)
	}
	for _, record := range g.UpgradeLog {
		out.UpgradeLog = append(out.UpgradeLog, cloneAnyMap(record))
	}
	for kind, id := range g.Channels {
		out.Channels[kind] = cloneID(id)
	}
	for event, id := range g.EventRoles {
		out.EventRoles[event] = cloneID(id)
	}
	for _, schedule := range g.Schedules {
		out.Schedules = append(out.Schedules, schedule.Clone())
	}
	for clan, wars := range g.WarAlertState {
		cloned := make(map[string][]string, len(wars))
		for warTag, sent := range wars {
			cloned[warTag] = append([]string(nil), sent...)
		}
		out.WarAlertState[clan] = cloned
	}
	return out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = cloneAny(value)
	}
	return out
}

func cloneAny(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneAnyMap(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}
