package guildcfg

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Arbitrary malformed values every normalizer must swallow without
// panicking.
var garbageInputs = []any{
	nil,
	true,
	false,
	"a string",
	json.Number("42"),
	float64(3.5),
	[]any{"x", 1, nil},
	map[string]any{"unexpected": []any{map[string]any{}}},
}

func TestNormalizersAreTotal(t *testing.T) {
	for i, input := range garbageInputs {
		input := input
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			entry := NormalizeClan(input)
			require.NotNil(t, entry)
			assert.NotEmpty(t, entry.Dashboard.Modules)
			assert.Contains(t, []string{FormatEmbed, FormatCSV, FormatBoth}, entry.Dashboard.Format)

			assert.NotNil(t, NormalizePlayerAccounts(input))
			assert.Len(t, NormalizeEventRoles(input), 2)
			assert.NotNil(t, NormalizeChannels(input))
			assert.NotNil(t, NormalizeSchedules(input))
			assert.NotNil(t, NormalizeUpgradeLog(input))
			assert.NotNil(t, NormalizeWarAlertState(input))
		})
	}
}

func TestNormalizeClanDefaults(t *testing.T) {
	entry := NormalizeClan(nil)

	assert.Equal(t, "", entry.Tag)
	assert.True(t, entry.Alerts.Enabled)
	assert.Nil(t, entry.Alerts.ChannelID)
	assert.Equal(t, []string{"war_overview"}, entry.Dashboard.Modules)
	assert.Equal(t, FormatEmbed, entry.Dashboard.Format)
	assert.True(t, entry.DonationTracking.Metrics.TopDonors)
	assert.False(t, entry.DonationTracking.Metrics.LowDonors)
	assert.False(t, entry.DonationTracking.Metrics.NegativeBalance)
	assert.NotNil(t, entry.WarPlans)
	assert.NotNil(t, entry.WarNudge.Reasons)
}

func TestNormalizeClanCoercesInvalidFields(t *testing.T) {
	entry := NormalizeClan(map[string]any{
		"tag":    "#ABC",
		"alerts": map[string]any{"enabled": "yes", "channel_id": json.Number("123456789012345678")},
		"dashboard": map[string]any{
			"modules": []any{},
			"format":  "pdf",
		},
		"war_nudge": map[string]any{"reasons": []any{"missed_attack", 7, nil}},
		"donation_tracking": map[string]any{
			"metrics": map[string]any{"top_donors": false, "low_donors": true},
		},
		"extra_field": "dropped",
	})

	assert.Equal(t, "#ABC", entry.Tag)
	// "yes" is not a boolean, so the default wins.
	assert.True(t, entry.Alerts.Enabled)
	require.NotNil(t, entry.Alerts.ChannelID)
	assert.Equal(t, int64(123456789012345678), *entry.Alerts.ChannelID)
	assert.Equal(t, []string{"war_overview"}, entry.Dashboard.Modules)
	assert.Equal(t, FormatEmbed, entry.Dashboard.Format)
	assert.Equal(t, []string{"missed_attack"}, entry.WarNudge.Reasons)
	assert.False(t, entry.DonationTracking.Metrics.TopDonors)
	assert.True(t, entry.DonationTracking.Metrics.LowDonors)
}

func TestNormalizePlayerAccounts(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want map[string][]PlayerAccount
	}{
		{
			name: "record list with canonicalization",
			raw: map[string]any{
				"100": []any{
					map[string]any{"tag": "  #abc123 ", "alias": " main "},
					map[string]any{"tag": "   "},
					map[string]any{"alias": "no tag"},
					"#def456",
					42,
				},
			},
			want: map[string][]PlayerAccount{
				"100": {
					{Tag: "#ABC123", Alias: "main"},
					{Tag: "#DEF456"},
				},
			},
		},
		{
			name: "legacy alias to tag mapping",
			raw: map[string]any{
				"200": map[string]any{"alt": "#xyz"},
			},
			want: map[string][]PlayerAccount{
				"200": {{Tag: "#XYZ", Alias: "alt"}},
			},
		},
		{
			name: "users with no valid accounts are dropped",
			raw: map[string]any{
				"300": []any{map[string]any{"tag": ""}},
				"400": "not a list",
			},
			want: map[string][]PlayerAccount{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePlayerAccounts(tc.raw))
		})
	}
}

func TestNormalizeEventRoles(t *testing.T) {
	roles := NormalizeEventRoles(map[string]any{
		"clan_games": json.Number("555"),
		"raid_weekend": "not an id",
		"unknown_event": json.Number("1"),
	})

	require.Len(t, roles, 2)
	require.NotNil(t, roles[EventClanGames])
	assert.Equal(t, int64(555), *roles[EventClanGames])
	assert.Nil(t, roles[EventRaidWeekend])
	_, hasUnknown := roles["unknown_event"]
	assert.False(t, hasUnknown)
}

func TestNormalizeChannelsKeepsExtensions(t *testing.T) {
	channels := NormalizeChannels(map[string]any{
		"upgrade": json.Number("111"),
		"custom":  json.Number("222"),
		"broken":  "nope",
	})

	require.NotNil(t, channels["upgrade"])
	assert.Equal(t, int64(111), *channels["upgrade"])
	assert.Nil(t, channels["donation"])
	require.NotNil(t, channels["custom"])
	assert.Equal(t, int64(222), *channels["custom"])
	assert.Nil(t, channels["broken"])
}

func TestNormalizeSchedulesDefaults(t *testing.T) {
	schedules := NormalizeSchedules([]any{
		map[string]any{"clan_name": "Home"},
		"not a schedule",
		map[string]any{
			"id":         json.Number("7"),
			"type":       "donation",
			"frequency":  "weekly",
			"time_utc":   "18:30",
			"weekday":    json.Number("2"),
			"channel_id": json.Number("999"),
			"next_run":   "2026-01-01T18:30:00Z",
			"options":    map[string]any{"top": json.Number("5")},
		},
	})

	require.Len(t, schedules, 2)
	assert.Equal(t, "dashboard", schedules[0].Type)
	assert.Equal(t, "daily", schedules[0].Frequency)
	assert.Equal(t, "00:00", schedules[0].TimeUTC)
	assert.Nil(t, schedules[0].Weekday)
	assert.NotNil(t, schedules[0].Options)

	assert.Equal(t, "7", schedules[1].ID)
	assert.Equal(t, "donation", schedules[1].Type)
	require.NotNil(t, schedules[1].Weekday)
	assert.Equal(t, 2, *schedules[1].Weekday)
	require.NotNil(t, schedules[1].NextRun)
	assert.Equal(t, "2026-01-01T18:30:00Z", *schedules[1].NextRun)
}

func TestNormalizeUpgradeLogBounds(t *testing.T) {
	// Junk at the head must be dropped; it falls outside the kept
	// tail anyway.
	raw := []any{"junk", nil}
	for i := 0; i < 300; i++ {
		raw = append(raw, map[string]any{"seq": fmt.Sprintf("%03d", i)})
	}

	log := NormalizeUpgradeLog(raw)

	require.Len(t, log, MaxUpgradeLogEntries)
	// The tail slice keeps the most recent entries, oldest first.
	assert.Equal(t, "050", log[0]["seq"])
	assert.Equal(t, "299", log[len(log)-1]["seq"])
}

func TestNormalizeWarAlertStatePrunes(t *testing.T) {
	state := NormalizeWarAlertState(map[string]any{
		"Home": map[string]any{
			"#WAR1": []any{"start_1h", "", 5},
			"#WAR2": []any{},
			"#WAR3": "not a list",
		},
		"Empty": map[string]any{
			"#WAR4": []any{nil},
		},
		"": map[string]any{"#WAR5": []any{"x"}},
	})

	require.Contains(t, state, "Home")
	assert.Equal(t, map[string][]string{"#WAR1": {"start_1h"}}, state["Home"])
	assert.NotContains(t, state, "Empty")
	assert.NotContains(t, state, "")
}

func TestCanonicalPlayerTag(t *testing.T) {
	assert.Equal(t, "#ABC123", CanonicalPlayerTag("  #abc123 "))
	assert.Equal(t, "#ABC123", CanonicalPlayerTag("abc123"))
	assert.Equal(t, "#ABC123", CanonicalPlayerTag("##abc123"))
	assert.Equal(t, "", CanonicalPlayerTag("   "))
}
