package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/alerts"
	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/coc"
	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/config"
	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/guildcfg"
	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/stats"
)

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	store    *guildcfg.Store
	coc      *coc.Client
	stats    *stats.Repository
	poller   *alerts.Poller
	commands []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Load the guild configuration store
	store, err := guildcfg.Open(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config store: %w", err)
	}

	// Initialize command usage stats
	statsRepo, err := stats.NewRepository(cfg.StatsDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize stats storage: %w", err)
	}

	b := &Bot{
		config:  cfg,
		session: session,
		store:   store,
		coc:     coc.NewClient(cfg.CocAPIToken),
		stats:   statsRepo,
	}

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the war alert poller
	b.poller = alerts.New(b.store, b.coc, b.session, b.config.AlertIntervalSeconds)
	go b.poller.Start(ctx)

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the poller
	if b.poller != nil {
		b.poller.Stop()
	}

	// Close stats storage
	if b.stats != nil {
		b.stats.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
		return
	case discordgo.InteractionApplicationCommand:
	default:
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	if err := b.stats.Increment(data.Name); err != nil {
		slog.Warn("Failed to record command usage", "command", data.Name, "error", err)
	}

	switch data.Name {
	case "set_clan":
		b.handleSetClan(s, i)
	case "remove_clan":
		b.handleRemoveClan(s, i)
	case "list_clans":
		b.handleListClans(s, i)
	case "clan_war_info":
		b.handleClanWarInfo(s, i)
	case "war_alert_channel":
		b.handleWarAlertChannel(s, i)
	case "link_player":
		b.handleLinkPlayer(s, i)
	case "unlink_player":
		b.handleUnlinkPlayer(s, i)
	case "player_info":
		b.handlePlayerInfo(s, i)
	case "help":
		b.handleHelp(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}
