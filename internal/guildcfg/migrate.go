package guildcfg

// Schema detection is structural: the file stores no version field, so
// each known on-disk shape gets a strategy with a match predicate.
// Strategies are tried in order and the first match wins; adding a
// future schema version means appending a strategy, never editing an
// existing one.

type schemaStrategy struct {
	name    string
	matches func(record map[string]any) bool
	convert func(record map[string]any) *GuildConfig
}

var schemaStrategies = []schemaStrategy{
	{
		name: "current",
		matches: func(record map[string]any) bool {
			_, ok := record["clans"]
			return ok
		},
		convert: normalizeCurrent,
	},
	{
		// Oldest known shape: flat "Clan tags" / "Enable Alert
		// Tracking" maps at the top level. Matches anything left.
		name:    "legacy-flat",
		matches: func(map[string]any) bool { return true },
		convert: convertLegacy,
	},
}

// Migrate rewrites one raw guild record, whatever its vintage, into a
// fully normalized GuildConfig.
func Migrate(record map[string]any) *GuildConfig {
	for _, strategy := range schemaStrategies {
		if strategy.matches(record) {
			return strategy.convert(record)
		}
	}
	return NewGuildConfig()
}

// normalizeCurrent re-normalizes an already-migrated record field by
// field.
func normalizeCurrent(record map[string]any) *GuildConfig {
	cfg := NewGuildConfig()
	if clans, ok := asMap(record["clans"]); ok {
		for clanName, clanData := range clans {
			cfg.Clans[clanName] = NormalizeClan(clanData)
		}
	}
	cfg.PlayerTags = normalizePlayerTags(record["player_tags"])
	cfg.PlayerAccounts = NormalizePlayerAccounts(record["player_accounts"])
	cfg.UpgradeLog = NormalizeUpgradeLog(record["upgrade_log"])
	cfg.Channels = NormalizeChannels(record["channels"])
	cfg.EventRoles = NormalizeEventRoles(record["event_roles"])
	cfg.Schedules = NormalizeSchedules(record["schedules"])
	cfg.WarAlertState = NormalizeWarAlertState(record["war_alert_state"])
	return cfg
}

// convertLegacy rebuilds the flat clan-tag/alert maps into ClanEntry
// records. Fields the legacy shape never had default to empty via the
// normalizers.
func convertLegacy(record map[string]any) *GuildConfig {
	cfg := NewGuildConfig()

	legacyTags, _ := asMap(record["Clan tags"])
	legacyAlerts, _ := asMap(record["Enable Alert Tracking"])
	for clanName, tag := range legacyTags {
		cfg.Clans[clanName] = NormalizeClan(map[string]any{
			"tag": tag,
			"alerts": map[string]any{
				"enabled":    asBool(legacyAlerts[clanName], true),
				"channel_id": nil,
			},
		})
	}

	cfg.PlayerTags = normalizePlayerTags(record["Player tags"])
	cfg.PlayerAccounts = NormalizePlayerAccounts(record["player_accounts"])
	cfg.UpgradeLog = NormalizeUpgradeLog(record["upgrade_log"])
	cfg.Channels = NormalizeChannels(record["channels"])
	cfg.EventRoles = NormalizeEventRoles(record["event_roles"])
	cfg.Schedules = NormalizeSchedules(record["schedules"])
	cfg.WarAlertState = NormalizeWarAlertState(record["war_alert_state"])
	return cfg
}
