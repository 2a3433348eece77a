package guildcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Errors the read path surfaces so the command layer can render
// distinct guidance for each.
var (
	ErrGuildNotConfigured = errors.New("guild not configured")
	ErrClanNotConfigured  = errors.New("clan not configured")
	ErrInvalidTag         = errors.New("invalid tag")
	ErrUnknownEvent       = errors.New("unknown event")
)

// Store is the in-memory guild configuration map plus its backing
// file. It is constructed once at startup and passed to every
// collaborator that needs it. discordgo runs handlers on separate
// goroutines, so all access is guarded by an internal mutex; save is
// part of each mutation's critical section.
type Store struct {
	mu     sync.RWMutex
	path   string
	guilds map[int64]*GuildConfig
}

// Open loads the config file and writes the normalized form back so a
// fresh or migrated file is immediately durable.
func Open(path string) (*Store, error) {
	guilds, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, guilds: guilds}
	if err := s.save(); err != nil {
		return nil, fmt.Errorf("persist loaded config: %w", err)
	}
	return s, nil
}

// ensureGuild materializes an empty guild record on first reference.
// Callers must hold the write lock.
func (s *Store) ensureGuild(guildID int64) *GuildConfig {
	cfg, ok := s.guilds[guildID]
	if !ok {
		cfg = NewGuildConfig()
		s.guilds[guildID] = cfg
	}
	return cfg
}

// SetClan upserts a clan entry: the tag is trimmed and upper-cased,
// the alert flag replaced, and a previously chosen alert channel
// preserved. The store is persisted before returning.
func (s *Store) SetClan(guildID int64, clanName, tag string, alertsEnabled bool) error {
	canonical := CanonicalClanTag(tag)
	if canonical == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.ensureGuild(guildID)
	entry, ok := cfg.Clans[clanName]
	if !ok {
		entry = NormalizeClan(nil)
		cfg.Clans[clanName] = entry
	}
	entry.Tag = canonical
	entry.Alerts.Enabled = alertsEnabled
	return s.save()
}

// RemoveClan deletes a clan entry along with its war-alert state.
func (s *Store) RemoveClan(guildID int64, clanName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return ErrGuildNotConfigured
	}
	if _, ok := cfg.Clans[clanName]; !ok {
		return ErrClanNotConfigured
	}
	delete(cfg.Clans, clanName)
	delete(cfg.WarAlertState, clanName)
	return s.save()
}

// SetAlertChannel points a clan's war alerts at a channel.
func (s *Store) SetAlertChannel(guildID int64, clanName string, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.clanLocked(guildID, clanName)
	if err != nil {
		return err
	}
	entry.Alerts.ChannelID = &channelID
	return s.save()
}

// SetDashboard replaces a clan's dashboard settings, normalized the
// same way load normalizes them.
func (s *Store) SetDashboard(guildID int64, clanName string, modules []string, format string, channelID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.clanLocked(guildID, clanName)
	if err != nil {
		return err
	}
	raw := map[string]any{"modules": toAnyList(modules), "format": format}
	normalized := NormalizeClan(map[string]any{"dashboard": raw}).Dashboard
	normalized.ChannelID = channelID
	entry.Dashboard = normalized
	return s.save()
}

// LinkPlayerAccount attaches an in-game account to a Discord user.
// The tag is canonicalized; a duplicate tag updates the alias in
// place.
func (s *Store) LinkPlayerAccount(guildID int64, userID, tag, alias string) (PlayerAccount, error) {
	canonical := CanonicalPlayerTag(tag)
	if canonical == "" {
		return PlayerAccount{}, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	account := PlayerAccount{Tag: canonical}
	if trimmed := strings.TrimSpace(alias); trimmed != "" {
		account.Alias = trimmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.ensureGuild(guildID)
	accounts := cfg.PlayerAccounts[userID]
	replaced := false
	for i := range accounts {
		if accounts[i].Tag == canonical {
			accounts[i] = account
			replaced = true
			break
		}
	}
	if !replaced {
		accounts = append(accounts, account)
	}
	cfg.PlayerAccounts[userID] = accounts
	return account, s.save()
}

// UnlinkPlayerAccount removes one linked account by tag. Reports
// whether an account was removed.
func (s *Store) UnlinkPlayerAccount(guildID int64, userID, tag string) (bool, error) {
	canonical := CanonicalPlayerTag(tag)

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return false, ErrGuildNotConfigured
	}
	accounts := cfg.PlayerAccounts[userID]
	for i := range accounts {
		if accounts[i].Tag == canonical {
			accounts = append(accounts[:i], accounts[i+1:]...)
			if len(accounts) == 0 {
				delete(cfg.PlayerAccounts, userID)
			} else {
				cfg.PlayerAccounts[userID] = accounts
			}
			return true, s.save()
		}
	}
	return false, nil
}

// SetChannel assigns a channel for one of the open-ended channel
// kinds (upgrade, donation, ...).
func (s *Store) SetChannel(guildID int64, kind string, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.ensureGuild(guildID)
	cfg.Channels[kind] = &channelID
	return s.save()
}

// SetEventRole assigns a ping role for a known event.
func (s *Store) SetEventRole(guildID int64, event string, roleID int64) error {
	if event != EventClanGames && event != EventRaidWeekend {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.ensureGuild(guildID)
	cfg.EventRoles[event] = &roleID
	return s.save()
}

// AddSchedule stores a report schedule, assigning an id and defaults,
// and returns the stored copy.
func (s *Store) AddSchedule(guildID int64, schedule Schedule) (Schedule, error) {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Type == "" {
		schedule.Type = "dashboard"
	}
	if schedule.Frequency == "" {
		schedule.Frequency = "daily"
	}
	if schedule.TimeUTC == "" {
		schedule.TimeUTC = "00:00"
	}
	if schedule.Options == nil {
		schedule.Options = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.ensureGuild(guildID)
	cfg.Schedules = append(cfg.Schedules, schedule)
	return schedule.Clone(), s.save()
}

// RemoveSchedule deletes a schedule by id. Reports whether a schedule
// was removed.
func (s *Store) RemoveSchedule(guildID int64, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return false, ErrGuildNotConfigured
	}
	for i := range cfg.Schedules {
		if cfg.Schedules[i].ID == id {
			cfg.Schedules = append(cfg.Schedules[:i], cfg.Schedules[i+1:]...)
			return true, s.save()
		}
	}
	return false, nil
}

// AppendUpgradeLog appends a free-form record to the bounded upgrade
// log, dropping the oldest entry beyond the cap.
func (s *Store) AppendUpgradeLog(guildID int64, record map[string]any) error {
	if record == nil {
		record = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.ensureGuild(guildID)
	cfg.UpgradeLog = append(cfg.UpgradeLog, record)
	if len(cfg.UpgradeLog) > MaxUpgradeLogEntries {
		cfg.UpgradeLog = cfg.UpgradeLog[len(cfg.UpgradeLog)-MaxUpgradeLogEntries:]
	}
	return s.save()
}

// MarkAlertSent records a war alert id in the de-dup cache. It
// returns true when the alert had not been sent before; only then is
// the store persisted.
func (s *Store) MarkAlertSent(guildID int64, clanName, warTag, alertID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.ensureGuild(guildID)
	wars, ok := cfg.WarAlertState[clanName]
	if !ok {
		wars = map[string][]string{}
		cfg.WarAlertState[clanName] = wars
	}
	for _, sent := range wars[warTag] {
		if sent == alertID {
			return false, nil
		}
	}
	wars[warTag] = append(wars[warTag], alertID)
	return true, s.save()
}

// ClearWarAlertState drops the de-dup cache for a finished war so a
// future war under the same tag can alert again.
func (s *Store) ClearWarAlertState(guildID int64, clanName, warTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return ErrGuildNotConfigured
	}
	wars, ok := cfg.WarAlertState[clanName]
	if !ok {
		return nil
	}
	delete(wars, warTag)
	if len(wars) == 0 {
		delete(cfg.WarAlertState, clanName)
	}
	return s.save()
}

// Read accessors. Everything handed out is a copy: reads never
// re-normalize, and writes must route through the setters above.

// Clan returns a copy of one clan entry.
func (s *Store) Clan(guildID int64, clanName string) (*ClanEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.clanLocked(guildID, clanName)
	if err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// ClanTag resolves the remote tag for a configured clan.
func (s *Store) ClanTag(guildID int64, clanName string) (string, error) {
	entry, err := s.Clan(guildID, clanName)
	if err != nil {
		return "", err
	}
	if entry.Tag == "" {
		return "", fmt.Errorf("%w: clan %q has no tag", ErrClanNotConfigured, clanName)
	}
	return entry.Tag, nil
}

// ClanNames returns the clan name -> tag mapping for a guild, sorted
// iteration left to the caller.
func (s *Store) ClanNames(guildID int64) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := map[string]string{}
	cfg, ok := s.guilds[guildID]
	if !ok {
		return names
	}
	for name, entry := range cfg.Clans {
		if entry != nil && entry.Tag != "" {
			names[name] = entry.Tag
		}
	}
	return names
}

// Clans returns copies of every clan entry for a guild.
func (s *Store) Clans(guildID int64) map[string]*ClanEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]*ClanEntry{}
	cfg, ok := s.guilds[guildID]
	if !ok {
		return out
	}
	for name, entry := range cfg.Clans {
		out[name] = entry.Clone()
	}
	return out
}

// Guild returns a deep copy of the whole guild record.
func (s *Store) Guild(guildID int64) (*GuildConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

// GuildIDs lists configured guilds in ascending order.
func (s *Store) GuildIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.guilds))
	for id := range s.guilds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PlayerAccounts returns the accounts linked to one user.
func (s *Store) PlayerAccounts(guildID int64, userID string) []PlayerAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return nil
	}
	return append([]PlayerAccount(nil), cfg.PlayerAccounts[userID]...)
}

// Schedules returns copies of a guild's report schedules.
func (s *Store) Schedules(guildID int64) []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return nil
	}
	out := make([]Schedule, 0, len(cfg.Schedules))
	for _, schedule := range cfg.Schedules {
		out = append(out, schedule.Clone())
	}
	return out
}

// UpgradeLog returns a copy of the bounded upgrade log.
func (s *Store) UpgradeLog(guildID int64) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.guilds[guildID]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(cfg.UpgradeLog))
	for _, record := range cfg.UpgradeLog {
		out = append(out, cloneAnyMap(record))
	}
	return out
}

// Save persists the current store. Mutating methods already save;
// this is for callers batching mutations behind their own lock.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *Store) clanLocked(guildID int64, clanName string) (*ClanEntry, error) {
	cfg, ok := s.guilds[guildID]
	if !ok {
		return nil, ErrGuildNotConfigured
	}
	entry, ok := cfg.Clans[clanName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClanNotConfigured, clanName)
	}
	return entry, nil
}

// save serializes the whole store, keys re-stringified, and replaces
// the backing file via a temp file and rename. Callers hold the lock.
// On failure the in-memory mutation stays applied; the caller decides
// whether to retry.
func (s *Store) save() error {
	serializable := make(map[string]*GuildConfig, len(s.guilds))
	for guildID, cfg := range s.guilds {
		serializable[strconv.FormatInt(guildID, 10)] = cfg
	}

	data, err := json.MarshalIndent(serializable, "", "    ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".clan_configs-*.json")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func toAnyList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
