package guildcfg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "clan_configs.json"))
	require.NoError(t, err)
	return store
}

func TestLoadMissingFile(t *testing.T) {
	guilds, err := Load(filepath.Join(t.TempDir(), "nope.json"))

	require.NoError(t, err)
	assert.Empty(t, guilds)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clan_configs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	guilds, err := Load(path)

	require.NoError(t, err)
	assert.Empty(t, guilds)
}

func TestLoadNonNumericGuildKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clan_configs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not-a-guild": {}}`), 0o644))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-guild")
}

func TestLoadPreservesSnowflakePrecision(t *testing.T) {
	// 2^60 + 1 is not representable as a float64.
	path := filepath.Join(t.TempDir(), "clan_configs.json")
	doc := `{"42": {"clans": {"Home": {"tag": "#ABC", "alerts": {"enabled": true, "channel_id": 1152921504606846977}}}}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	guilds, err := Load(path)

	require.NoError(t, err)
	require.NotNil(t, guilds[42].Clans["Home"].Alerts.ChannelID)
	assert.Equal(t, int64(1152921504606846977), *guilds[42].Clans["Home"].Alerts.ChannelID)
}

func TestSetClanCanonicalizesTag(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.SetClan(1, "Home", "  #abc123 ", true))

	entry, err := store.Clan(1, "Home")
	require.NoError(t, err)
	assert.Equal(t, "#ABC123", entry.Tag)
}

func TestSetClanUpsertsNotDuplicates(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.SetClan(42, "Alpha", "#XYZ", true))
	require.NoError(t, store.SetClan(42, "Alpha", "#XYZ9", false))

	names := store.ClanNames(42)
	require.Len(t, names, 1)
	entry, err := store.Clan(42, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, "#XYZ9", entry.Tag)
	assert.False(t, entry.Alerts.Enabled)
}

func TestSetClanPreservesAlertChannel(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.SetClan(1, "Home", "#ABC", true))
	require.NoError(t, store.SetAlertChannel(1, "Home", 777))
	require.NoError(t, store.SetClan(1, "Home", "#NEWTAG", false))

	entry, err := store.Clan(1, "Home")
	require.NoError(t, err)
	require.NotNil(t, entry.Alerts.ChannelID)
	assert.Equal(t, int64(777), *entry.Alerts.ChannelID)
}

func TestReadPathDistinguishesMissingGuildFromMissingClan(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.SetClan(1, "Home", "#ABC", true))

	_, err := store.Clan(2, "Home")
	assert.ErrorIs(t, err, ErrGuildNotConfigured)

	_, err = store.Clan(1, "Away")
	assert.ErrorIs(t, err, ErrClanNotConfigured)

	tag, err := store.ClanTag(1, "Home")
	require.NoError(t, err)
	assert.Equal(t, "#ABC", tag)
}

func TestClanReturnsCopy(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.SetClan(1, "Home", "#ABC", true))

	entry, err := store.Clan(1, "Home")
	require.NoError(t, err)
	entry.Tag = "#HACKED"
	entry.WarPlans["x"] = "y"

	fresh, err := store.Clan(1, "Home")
	require.NoError(t, err)
	assert.Equal(t, "#ABC", fresh.Tag)
	assert.Empty(t, fresh.WarPlans)
}

func TestLinkPlayerAccount(t *testing.T) {
	store := testStore(t)

	account, err := store.LinkPlayerAccount(1, "100", " abc123 ", " main ")
	require.NoError(t, err)
	assert.Equal(t, PlayerAccount{Tag: "#ABC123", Alias: "main"}, account)

	// Linking the same tag again updates the alias in place.
	_, err = store.LinkPlayerAccount(1, "100", "#abc123", "new alias")
	require.NoError(t, err)

	accounts := store.PlayerAccounts(1, "100")
	require.Len(t, accounts, 1)
	assert.Equal(t, "new alias", accounts[0].Alias)

	_, err = store.LinkPlayerAccount(1, "100", "   ", "")
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestUnlinkPlayerAccount(t *testing.T) {
	store := testStore(t)
	_, err := store.LinkPlayerAccount(1, "100", "#A1", "")
	require.NoError(t, err)

	removed, err := store.UnlinkPlayerAccount(1, "100", "a1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.UnlinkPlayerAccount(1, "100", "#A1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAppendUpgradeLogBounded(t *testing.T) {
	store := testStore(t)

	for i := 0; i < MaxUpgradeLogEntries+10; i++ {
		require.NoError(t, store.AppendUpgradeLog(1, map[string]any{"seq": i}))
	}

	log := store.UpgradeLog(1)
	require.Len(t, log, MaxUpgradeLogEntries)
	assert.Equal(t, 10, log[0]["seq"])
	assert.Equal(t, MaxUpgradeLogEntries+9, log[len(log)-1]["seq"])
}

func TestMarkAlertSentDeduplicates(t *testing.T) {
	store := testStore(t)

	first, err := store.MarkAlertSent(1, "Home", "#WAR1", "start_1h")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.MarkAlertSent(1, "Home", "#WAR1", "start_1h")
	require.NoError(t, err)
	assert.False(t, second)

	other, err := store.MarkAlertSent(1, "Home", "#WAR1", "end_1h")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestClearWarAlertState(t *testing.T) {
	store := testStore(t)
	_, err := store.MarkAlertSent(1, "Home", "#WAR1", "start_1h")
	require.NoError(t, err)

	require.NoError(t, store.ClearWarAlertState(1, "Home", "#WAR1"))

	again, err := store.MarkAlertSent(1, "Home", "#WAR1", "start_1h")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestSchedules(t *testing.T) {
	store := testStore(t)

	stored, err := store.AddSchedule(1, Schedule{ClanName: "Home"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "dashboard", stored.Type)
	assert.Equal(t, "daily", stored.Frequency)
	assert.Equal(t, "00:00", stored.TimeUTC)

	schedules := store.Schedules(1)
	require.Len(t, schedules, 1)

	removed, err := store.RemoveSchedule(1, stored.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, store.Schedules(1))
}

func TestSetEventRole(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.SetEventRole(1, EventClanGames, 900))
	assert.ErrorIs(t, store.SetEventRole(1, "solstice", 1), ErrUnknownEvent)

	cfg, ok := store.Guild(1)
	require.True(t, ok)
	require.NotNil(t, cfg.EventRoles[EventClanGames])
	assert.Equal(t, int64(900), *cfg.EventRoles[EventClanGames])
}

// Saving and reopening the store yields a structurally equivalent
// guild record.
func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clan_configs.json")
	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.SetClan(42, "Home", "#abc", false))
	require.NoError(t, store.SetAlertChannel(42, "Home", 1234567890))
	_, err = store.LinkPlayerAccount(42, "100", "#p1", "main")
	require.NoError(t, err)
	require.NoError(t, store.AppendUpgradeLog(42, map[string]any{"event": "hero_upgrade"}))
	_, err = store.MarkAlertSent(42, "Home", "#WAR1", "start_1h")
	require.NoError(t, err)

	before, ok := store.Guild(42)
	require.True(t, ok)

	reopened, err := Open(path)
	require.NoError(t, err)
	after, ok := reopened.Guild(42)
	require.True(t, ok)

	assert.Equal(t, before, after)
}

// The persisted document keys guilds by decimal string and stays
// decodable as plain JSON.
func TestSaveDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clan_configs.json")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SetClan(7, "Home", "#ABC", true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "7")
	assert.Contains(t, doc["7"], "clans")
	assert.Contains(t, doc["7"], "war_alert_state")
}
