package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/coc"
	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/guildcfg"
)

// WarFetcher is the slice of the API client the poller needs.
type WarFetcher interface {
	CurrentWar(ctx context.Context, tag string) (*coc.CurrentWar, error)
}

// Messenger is the slice of the Discord session the poller needs.
type Messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Poller periodically checks tracked clans for due war alerts
type Poller struct {
	store    *guildcfg.Store
	fetcher  WarFetcher
	discord  Messenger
	interval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Poller
func New(store *guildcfg.Store, fetcher WarFetcher, discord Messenger, intervalSeconds int) *Poller {
	return &Poller{
		store:    store,
		fetcher:  fetcher,
		discord:  discord,
		interval: time.Duration(intervalSeconds) * time.Second,
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop
func (p *Poller) Start(ctx context.Context) {
	slog.Info("Starting war alert poller", "interval", p.interval)

	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial poll
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("War alert poller stopped (context cancelled)")
			return
		case <-p.stopChan:
			slog.Info("War alert poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop signals the poller to stop
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

// poll walks every tracked clan once
func (p *Poller) poll(ctx context.Context) {
	now := time.Now().UTC()

	for _, guildID := range p.store.GuildIDs() {
		for clanName, entry := range p.store.Clans(guildID) {
			select {
			case <-ctx.Done():
				return
			default:
			}
			p.checkClan(ctx, guildID, clanName, entry, now)
		}
	}
}

// checkClan fetches one clan's war and delivers any due alerts
func (p *Poller) checkClan(ctx context.Context, guildID int64, clanName string, entry *guildcfg.ClanEntry, now time.Time) {
	if !entry.Alerts.Enabled || entry.Tag == "" {
		return
	}
	if entry.Alerts.ChannelID == nil {
		slog.Debug("Skipping alerts: no channel configured", "guildID", guildID, "clan", clanName)
		return
	}

	war, err := p.fetcher.CurrentWar(ctx, entry.Tag)
	if err != nil {
		// Clans without accessible war data are skipped, not surfaced.
		if errors.Is(err, coc.ErrPrivateWarLog) || errors.Is(err, coc.ErrNotFound) {
			slog.Debug("Skipping alerts: war data unavailable", "clan", clanName, "error", err)
		} else {
			slog.Error("Failed to fetch war", "clan", clanName, "error", err)
		}
		return
	}

	warKey := warStateKey(entry.Tag, war)
	channelID := strconv.FormatInt(*entry.Alerts.ChannelID, 10)

	for _, alert := range DueAlerts(clanName, war, now) {
		fresh, err := p.store.MarkAlertSent(guildID, clanName, warKey, alert.ID)
		if err != nil {
			slog.Error("Failed to persist alert state", "clan", clanName, "error", err)
			continue
		}
		if !fresh {
			continue
		}
		if _, err := p.discord.ChannelMessageSend(channelID, alert.Message); err != nil {
			slog.Error("Failed to send alert", "guildID", guildID, "channelID", channelID, "error", err)
		} else {
			slog.Info("Sent war alert", "guildID", guildID, "clan", clanName, "alert", alert.ID)
		}
	}
}

// warStateKey identifies one war in the de-dup cache. The current-war
// endpoint exposes no war tag, so the key combines the clan tag with
// the preparation start time; successive wars get distinct keys.
func warStateKey(tag string, war *coc.CurrentWar) string {
	if war.PreparationStartTime.IsZero() {
		return tag
	}
	return fmt.Sprintf("%s@%s", tag, war.PreparationStartTime.UTC().Format("20060102T150405"))
}
