package guildcfg

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The normalize functions are total over arbitrary decoded JSON: a
// field with the wrong shape is replaced by its default and unknown
// fields are dropped. A hand-edited or corrupt config file must never
// keep the bot from starting, so nothing in this file returns an error.

// NormalizeClan coerces a raw clan record into a valid ClanEntry.
func NormalizeClan(raw any) *ClanEntry {
	m, _ := asMap(raw)
	alerts, _ := asMap(m["alerts"])
	warNudge, _ := asMap(m["war_nudge"])
	dashboard, _ := asMap(m["dashboard"])
	donation, _ := asMap(m["donation_tracking"])
	metrics, _ := asMap(donation["metrics"])
	season, _ := asMap(m["season_summary"])

	modules := stringList(dashboard["modules"])
	if len(modules) == 0 {
		modules = []string{"war_overview"}
	}
	format, _ := asString(dashboard["format"])
	switch format {
	case FormatEmbed, FormatCSV, FormatBoth:
	default:
		format = FormatEmbed
	}

	tag, _ := asString(m["tag"])
	warPlans, ok := asMap(m["war_plans"])
	if !ok {
		warPlans = map[string]any{}
	}

	return &ClanEntry{
		Tag: tag,
		Alerts: AlertSettings{
			Enabled:   asBool(alerts["enabled"], true),
			ChannelID: asID(alerts["channel_id"]),
		},
		WarPlans: warPlans,
		WarNudge: WarNudge{Reasons: stringList(warNudge["reasons"])},
		Dashboard: Dashboard{
			Modules:   modules,
			Format:    format,
			ChannelID: asID(dashboard["channel_id"]),
		},
		DonationTracking: DonationTracking{
			Metrics: DonationMetrics{
				TopDonors:       asBool(metrics["top_donors"], true),
				LowDonors:       asBool(metrics["low_donors"], false),
				NegativeBalance: asBool(metrics["negative_balance"], false),
			},
			ChannelID: asID(donation["channel_id"]),
		},
		SeasonSummary: SeasonSummary{ChannelID: asID(season["channel_id"])},
	}
}

// NormalizePlayerAccounts coerces stored player account mappings into
// user id -> account list. Two historical shapes are accepted per
// user: a list of {tag, alias} records (bare tag strings allowed) and
// the older alias -> tag mapping. Records without a usable tag are
// skipped; users with no surviving records are dropped.
func NormalizePlayerAccounts(raw any) map[string][]PlayerAccount {
	normalized := map[string][]PlayerAccount{}
	m, ok := asMap(raw)
	if !ok {
		return normalized
	}

	for userID, records := range m {
		var source []any
		switch value := records.(type) {
		case []any:
			source = value
		case map[string]any:
			// Legacy alias -> tag mapping.
			for alias, tag := range value {
				source = append(source, map[string]any{"alias": alias, "tag": tag})
			}
		default:
			continue
		}

		var entries []PlayerAccount
		for _, record := range source {
			switch value := record.(type) {
			case map[string]any:
				tag, _ := asString(value["tag"])
				if strings.TrimSpace(tag) == "" {
					continue
				}
				account := PlayerAccount{Tag: strings.ToUpper(strings.TrimSpace(tag))}
				if alias, ok := asString(value["alias"]); ok && strings.TrimSpace(alias) != "" {
					account.Alias = strings.TrimSpace(alias)
				}
				entries = append(entries, account)
			case string:
				if strings.TrimSpace(value) != "" {
					entries = append(entries, PlayerAccount{Tag: strings.ToUpper(strings.TrimSpace(value))})
				}
			}
		}
		if len(entries) > 0 {
			normalized[userID] = entries
		}
	}
	return normalized
}

// NormalizeEventRoles keeps only the known event keys, each mapped to
// an integer role id or nil.
func NormalizeEventRoles(raw any) map[string]*int64 {
	result := map[string]*int64{EventClanGames: nil, EventRaidWeekend: nil}
	m, ok := asMap(raw)
	if !ok {
		return result
	}
	for key := range result {
		result[key] = asID(m[key])
	}
	return result
}

// NormalizeChannels seeds the fixed channel kinds and merges any
// stored keys over them; the mapping stays open to extension.
func NormalizeChannels(raw any) map[string]*int64 {
	result := map[string]*int64{ChannelUpgrade: nil, ChannelDonation: nil}
	m, ok := asMap(raw)
	if !ok {
		return result
	}
	for kind, value := range m {
		result[kind] = asID(value)
	}
	return result
}

// NormalizeSchedules coerces stored report schedules, defaulting type,
// frequency, and time. Non-object elements are dropped.
func NormalizeSchedules(raw any) []Schedule {
	list, ok := asList(raw)
	if !ok {
		return []Schedule{}
	}

	normalized := make([]Schedule, 0, len(list))
	for _, element := range list {
		entry, ok := asMap(element)
		if !ok {
			continue
		}
		schedule := Schedule{
			ID:        idString(entry["id"]),
			Type:      stringOr(entry["type"], "dashboard"),
			ClanName:  stringOr(entry["clan_name"], ""),
			Frequency: stringOr(entry["frequency"], "daily"),
			TimeUTC:   stringOr(entry["time_utc"], "00:00"),
			Weekday:   asIntPtr(entry["weekday"]),
			ChannelID: asID(entry["channel_id"]),
			Options:   map[string]any{},
		}
		if next, ok := asString(entry["next_run"]); ok {
			schedule.NextRun = &next
		}
		if options, ok := asMap(entry["options"]); ok {
			schedule.Options = options
		}
		normalized = append(normalized, schedule)
	}
	return normalized
}

// NormalizeUpgradeLog keeps the most recent MaxUpgradeLogEntries
// record objects, oldest first. Non-object elements are dropped.
func NormalizeUpgradeLog(raw any) []map[string]any {
	list, ok := asList(raw)
	if !ok {
		return []map[string]any{}
	}
	if len(list) > MaxUpgradeLogEntries {
		list = list[len(list)-MaxUpgradeLogEntries:]
	}
	normalized := make([]map[string]any, 0, len(list))
	for _, element := range list {
		if record, ok := asMap(element); ok {
			normalized = append(normalized, record)
		}
	}
	return normalized
}

// NormalizeWarAlertState prunes the persisted alert de-dup cache: a
// war tag with no valid sent ids is dropped, and a clan with no
// remaining war tags is dropped.
func NormalizeWarAlertState(raw any) map[string]map[string][]string {
	normalized := map[string]map[string][]string{}
	m, ok := asMap(raw)
	if !ok {
		return normalized
	}

	for clanName, wars := range m {
		if strings.TrimSpace(clanName) == "" {
			continue
		}
		warsMap, ok := asMap(wars)
		if !ok {
			continue
		}

		clanState := map[string][]string{}
		for warTag, sentIDs := range warsMap {
			if strings.TrimSpace(warTag) == "" {
				continue
			}
			list, ok := asList(sentIDs)
			if !ok {
				continue
			}
			var cleaned []string
			for _, value := range list {
				if id, ok := value.(string); ok && id != "" {
					cleaned = append(cleaned, id)
				}
			}
			if len(cleaned) > 0 {
				clanState[warTag] = cleaned
			}
		}
		if len(clanState) > 0 {
			normalized[clanName] = clanState
		}
	}
	return normalized
}

// normalizePlayerTags keeps only string -> string pairs of the legacy
// flat tag mapping, which is retained verbatim for old callers.
func normalizePlayerTags(raw any) map[string]string {
	result := map[string]string{}
	m, ok := asMap(raw)
	if !ok {
		return result
	}
	for user, value := range m {
		if tag, ok := asString(value); ok {
			result[user] = tag
		}
	}
	return result
}

// Coercion helpers. Decoded config values arrive as map[string]any,
// []any, string, bool, and json.Number (the loader decodes with
// UseNumber so Discord snowflakes survive without float rounding).
// Plain Go ints and floats are accepted too for values built in
// process.

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func stringOr(v any, fallback string) string {
	if s, ok := asString(v); ok && s != "" {
		return s
	}
	return fallback
}

// asBool accepts only real JSON booleans; anything else (including
// truthy strings) falls back to the default.
func asBool(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func asID(v any) *int64 {
	switch value := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(value.String(), 10, 64); err == nil {
			return &n
		}
	case int64:
		return &value
	case int:
		n := int64(value)
		return &n
	case float64:
		if value == float64(int64(value)) {
			n := int64(value)
			return &n
		}
	}
	return nil
}

func asIntPtr(v any) *int {
	if id := asID(v); id != nil {
		n := int(*id)
		return &n
	}
	return nil
}

// idString coerces a stored schedule id, which older files may hold as
// a number, into its string form.
func idString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	}
	return ""
}

func stringList(v any) []string {
	list, ok := asList(v)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, element := range list {
		if s, ok := element.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
