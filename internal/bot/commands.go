package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"

	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/coc"
	"github.com/mataeo-eh/CoC-Clan-Bot-sub000/internal/guildcfg"
)

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "set_clan",
			Description: "Set or update a tracked clan for this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "clan_name",
					Description: "Name to refer to the clan by",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tag",
					Description: "Clan tag (e.g. #ABC123)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enable_alerts",
					Description: "Post war alerts for this clan (default: yes)",
				},
			},
		},
		{
			Name:        "remove_clan",
			Description: "Stop tracking a configured clan",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "clan_name",
					Description:  "Configured clan to remove",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{
			Name:        "list_clans",
			Description: "List the clans configured for this server",
		},
		{
			Name:        "clan_war_info",
			Description: "Display the current war details for a configured clan",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "clan_name",
					Description:  "Configured clan to inspect",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{
			Name:        "war_alert_channel",
			Description: "Choose the channel war alerts post to for a clan",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "clan_name",
					Description:  "Configured clan to update",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to post alerts in",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:        "link_player",
			Description: "Link an in-game account to your Discord user",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tag",
					Description: "Player tag (e.g. #ABC123)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "alias",
					Description: "Optional nickname for this account",
				},
			},
		},
		{
			Name:        "unlink_player",
			Description: "Remove a linked in-game account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tag",
					Description: "Player tag to unlink",
					Required:    true,
				},
			},
		},
		{
			Name:        "player_info",
			Description: "Show a player's profile by tag or linked alias",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Player tag (#ABC123) or one of your linked aliases",
					Required:    true,
				},
			},
		},
		{
			Name:        "help",
			Description: "Show a quick primer on using the clan bot",
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// handleSetClan handles the /set_clan command
func (b *Bot) handleSetClan(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		respondWithMessage(s, i, "This command can only be used inside a Discord server.")
		return
	}
	if !isAdmin(i) {
		respondWithMessage(s, i, "You need the Administrator permission to configure clans.")
		return
	}

	options := optionMap(i.ApplicationCommandData().Options)
	clanName := options["clan_name"].StringValue()
	tag := options["tag"].StringValue()
	enableAlerts := true
	if opt, ok := options["enable_alerts"]; ok {
		enableAlerts = opt.BoolValue()
	}

	if err := b.store.SetClan(guildID, clanName, tag, enableAlerts); err != nil {
		if errors.Is(err, guildcfg.ErrInvalidTag) {
			respondWithMessage(s, i, fmt.Sprintf("`%s` is not a usable clan tag.", tag))
			return
		}
		slog.Error("Failed to save clan", "guildID", guildID, "clan", clanName, "error", err)
		respondWithMessage(s, i, "Failed to save the clan configuration. Please try again.")
		return
	}

	entry, err := b.store.Clan(guildID, clanName)
	if err != nil {
		slog.Error("Failed to read back clan", "guildID", guildID, "clan", clanName, "error", err)
		respondWithMessage(s, i, "Clan saved, but reading it back failed.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "`%s` now points to %s for this server.\n", clanName, entry.Tag)
	fmt.Fprintf(&sb, "War alerts enabled: %s.", yesNo(entry.Alerts.Enabled))
	if enableAlerts && entry.Alerts.ChannelID == nil {
		sb.WriteString("\nNo alert channel is set yet; run `/war_alert_channel` to pick one.")
	}
	respondWithMessage(s, i, sb.String())
}

// handleRemoveClan handles the /remove_clan command
func (b *Bot) handleRemoveClan(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		respondWithMessage(s, i, "This command can only be used inside a Discord server.")
		return
	}
	if !isAdmin(i) {
		respondWithMessage(s, i, "You need the Administrator permission to configure clans.")
		return
	}

	clanName := optionMap(i.ApplicationCommandData().Options)["clan_name"].StringValue()
	if err := b.store.RemoveClan(guildID, clanName); err != nil {
		respondWithMessage(s, i, notConfiguredMessage(err, clanName))
		return
	}
	respondWithMessage(s, i, fmt.Sprintf("`%s` is no longer tracked for this server.", clanName))
}

// handleListClans handles the /list_clans command
func (b *Bot) handleListClans(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		respondWithMessage(s, i, "This command can only be used inside a Discord server.")
		return
	}

	names := b.store.ClanNames(guildID)
	if len(names) == 0 {
		respondWithMessage(s, i, "No clans are configured for this server.\nAn administrator can add one with `/set_clan`.")
		return
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var sb strings.Builder
	sb.WriteString("**Configured Clans:**\n\n")
	for idx, name := range sorted {
		fmt.Fprintf(&sb, "  %d. `%s` → %s\n", idx+1, name, names[name])
	}
	respondWithMessage(s, i, sb.String())
}

// handleClanWarInfo handles the /clan_war_info command
func (b *Bot) handleClanWarInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		respondWithMessage(s, i, "This command can only be used inside a Discord server.")
		return
	}

	clanName := optionMap(i.ApplicationCommandData().Options)["clan_name"].StringValue()

	// Respond immediately to avoid timeout
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	tag, err := b.store.ClanTag(guildID, clanName)
	if err != nil {
		b.editResponse(s, i, notConfiguredMessage(err, clanName))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	war, err := b.coc.CurrentWar(ctx, tag)
	if err != nil {
		switch {
		case errors.Is(err, coc.ErrPrivateWarLog):
			b.editResponse(s, i, "This clan's war log is private.")
		case errors.Is(err, coc.ErrNotFound):
			b.editResponse(s, i, "Clan or war information not found.")
		default:
			slog.Error("Failed to fetch war info", "clan", clanName, "error", err)
			b.editResponse(s, i, "Unable to fetch war info right now. Please try again later.")
		}
		return
	}

	if war.State == coc.WarStateNotInWar {
		b.editResponse(s, i, fmt.Sprintf("`%s` is not currently in a war.", clanName))
		return
	}

	embed := buildWarEmbed(clanName, war)
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
}

// handleWarAlertChannel handles the /war_alert_channel command
func (b *Bot) handleWarAlertChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		respondWithMessage(s, i, "This command can only be used inside a Discord server.")
		return
	}
	if !isAdmin(i) {
		respondWithMessage(s, i, "You need the Administrator permission to configure alerts.")
		return
	}

	options := optionMap(i.ApplicationCommandData().Options)
	clanName := options["clan_name"].StringValue()
	channel := options["channel"].ChannelValue(s)

	channelID, err := strconv.ParseInt(channel.ID, 10, 64)
	if err != nil {
		respondWithMessage(s, i, "That channel could not be resolved. Please try again.")
		return
	}

	if err := b.store.SetAlertChannel(guildID, clanName, channelID); err != nil {
		respondWithMessage(s, i, notConfiguredMessage(err, clanName))
		return
	}
	respondWithMessage(s, i, fmt.Sprintf("War alerts for `%s` will post in <#%s>.", clanName, channel.ID))
}

// handleLinkPlayer handles the /link_player command
func (b *Bot) handleLinkPlayer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		respondWithMessage(s, i, "This command can only be used inside a Discord server.")
		return
	}

	options := optionMap(i.ApplicationCommandData().Options)
	tag := options["tag"].StringValue()
	alias := ""
	if opt, ok := options["alias"]; ok {
		alias = opt.StringValue()
	}

	account, err := b.store.LinkPlayerAccount(guildID, interactionUserID(i), tag, alias)
	if err != nil {
		if errors.Is(err, guildcfg.ErrInvalidTag) {
			respondWithMessage(s, i, fmt.Sprintf("`%s` is not a usable player tag.", tag))
			return
		}
		slog.Error("Failed to link player", "guildID", guildID, "error", err)
		respondWithMessage(s, i, "Failed to link the account. Please try again.")
		return
	}

	if account.Alias != "" {
		respondWithMessage(s, i, fmt.Sprintf("Linked %s as `%s`.", account.Tag, account.Alias))
	} else {
		respondWithMessage(s, i, fmt.Sprintf("Linked %s to your account.", account.Tag))
	}
}

// handleUnlinkPlayer handles the /unlink_player command
func (b *Bot) handleUnlinkPlayer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		respondWithMessage(s, i, "This command can only be used inside a Discord server.")
		return
	}

	tag := optionMap(i.ApplicationCommandData().Options)["tag"].StringValue()
	removed, err := b.store.UnlinkPlayerAccount(guildID, interactionUserID(i), tag)
	if err != nil || !removed {
		respondWithMessage(s, i, fmt.Sprintf("`%s` is not linked to your account.", tag))
		return
	}
	respondWithMessage(s, i, fmt.Sprintf("Unlinked `%s`.", guildcfg.CanonicalPlayerTag(tag)))
}

// handlePlayerInfo handles the /player_info command
func (b *Bot) handlePlayerInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, _ := interactionGuildID(i)
	reference := optionMap(i.ApplicationCommandData().Options)["player"].StringValue()

	// Respond immediately to avoid timeout
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	tag := b.resolvePlayerReference(guildID, interactionUserID(i), reference)
	if tag == "" {
		b.editResponse(s, i, fmt.Sprintf("`%s` is neither a player tag nor one of your linked aliases.", reference))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	player, err := b.coc.Player(ctx, tag)
	if err != nil {
		if errors.Is(err, coc.ErrNotFound) {
			b.editResponse(s, i, fmt.Sprintf("Could not find player `%s`. Please check the tag and try again.", tag))
			return
		}
		slog.Error("Failed to fetch player", "tag", tag, "error", err)
		b.editResponse(s, i, "Unable to fetch player info right now. Please try again later.")
		return
	}

	embed := buildPlayerEmbed(player)
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
}

// handleHelp handles the /help command
func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var sb strings.Builder
	sb.WriteString("**Clan Bot Quick Start**\n\n")
	sb.WriteString("1. An administrator runs `/set_clan` to register a clan by tag.\n")
	sb.WriteString("2. `/war_alert_channel` picks where war reminders post.\n")
	sb.WriteString("3. `/clan_war_info` shows the live war at any time.\n")
	sb.WriteString("4. `/link_player` ties your in-game accounts to your Discord user for `/player_info`.\n")

	if top, err := b.stats.Top(3); err == nil && len(top) > 0 {
		sb.WriteString("\n**Most used commands here:**\n")
		for _, c := range top {
			fmt.Fprintf(&sb, "  `/%s` — %d uses\n", c.Command, c.Count)
		}
	}

	respondWithMessage(s, i, sb.String())
}

// handleAutocomplete serves clan_name suggestions from the store
func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, ok := interactionGuildID(i)
	if !ok {
		return
	}

	var current string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Focused && opt.Name == "clan_name" {
			current = opt.StringValue()
			break
		}
	}

	names := b.store.ClanNames(guildID)
	sorted := make([]string, 0, len(names))
	for name := range names {
		if strings.Contains(strings.ToLower(name), strings.ToLower(current)) {
			sorted = append(sorted, name)
		}
	}
	sort.Strings(sorted)

	// Discord caps autocomplete at 25 choices.
	if len(sorted) > 25 {
		sorted = sorted[:25]
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(sorted))
	for _, name := range sorted {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		slog.Warn("Failed to send autocomplete choices", "error", err)
	}
}

// buildWarEmbed renders a war snapshot as a Discord embed
func buildWarEmbed(clanName string, war *coc.CurrentWar) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s Current War", clanName),
		Color: 0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "State", Value: titleize(war.State), Inline: true},
			{Name: "Opponent", Value: fmt.Sprintf("%s (%s)", war.Opponent.Name, war.Opponent.Tag), Inline: true},
			{Name: "War Size", Value: strconv.Itoa(war.TeamSize), Inline: true},
			{Name: "Stars", Value: fmt.Sprintf("%d - %d", war.Clan.Stars, war.Opponent.Stars), Inline: true},
			{
				Name:   "Destruction",
				Value:  fmt.Sprintf("%.1f%% - %.1f%%", war.Clan.DestructionPercentage, war.Opponent.DestructionPercentage),
				Inline: true,
			},
			{Name: "Attacks Used", Value: strconv.Itoa(war.Clan.Attacks), Inline: true},
		},
	}

	if !war.StartTime.IsZero() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "War Day", Value: discordTimestamp(war.StartTime.Time), Inline: true,
		})
	}
	if !war.EndTime.IsZero() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "War Ends", Value: discordTimestamp(war.EndTime.Time), Inline: true,
		})
	}
	return embed
}

// buildPlayerEmbed renders a player profile as a Discord embed
func buildPlayerEmbed(player *coc.Player) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s (%s)", player.Name, player.Tag),
		Color: 0x2ECC71,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Town Hall", Value: strconv.Itoa(player.TownHallLevel), Inline: true},
			{Name: "Level", Value: strconv.Itoa(player.ExpLevel), Inline: true},
			{Name: "Trophies", Value: strconv.Itoa(player.Trophies), Inline: true},
			{Name: "Best Trophies", Value: strconv.Itoa(player.BestTrophies), Inline: true},
			{Name: "War Stars", Value: strconv.Itoa(player.WarStars), Inline: true},
			{
				Name:   "Donations",
				Value:  fmt.Sprintf("%d given / %d received", player.Donations, player.DonationsReceived),
				Inline: true,
			},
		},
	}

	if player.Clan != nil {
		value := fmt.Sprintf("%s (%s)", player.Clan.Name, player.Clan.Tag)
		if player.Role != "" {
			value += " — " + titleize(player.Role)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Clan", Value: value})
	}
	if player.League != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "League", Value: player.League.Name, Inline: true,
		})
	}
	return embed
}

// resolvePlayerReference turns a raw tag or a linked alias into a
// canonical player tag; "" means unresolvable.
func (b *Bot) resolvePlayerReference(guildID int64, userID, reference string) string {
	trimmed := strings.TrimSpace(reference)
	if strings.HasPrefix(trimmed, "#") {
		return guildcfg.CanonicalPlayerTag(trimmed)
	}

	for _, account := range b.store.PlayerAccounts(guildID, userID) {
		if strings.EqualFold(account.Alias, trimmed) {
			return account.Tag
		}
	}

	// A bare tag without '#' still resolves when it is not an alias.
	if trimmed != "" {
		return guildcfg.CanonicalPlayerTag(trimmed)
	}
	return ""
}

// Helper functions

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func interactionGuildID(i *discordgo.InteractionCreate) (int64, bool) {
	if i.GuildID == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func notConfiguredMessage(err error, clanName string) string {
	switch {
	case errors.Is(err, guildcfg.ErrGuildNotConfigured):
		return "This server has not configured any clans yet. An administrator should run `/set_clan` first."
	case errors.Is(err, guildcfg.ErrClanNotConfigured):
		return fmt.Sprintf("`%s` is not configured for this server. Check the name or run `/set_clan` to add it.", clanName)
	default:
		return "Something went wrong reading the clan configuration."
	}
}

// discordTimestamp renders a Discord relative-time markup token.
func discordTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// titleize renders API enum values ("inWar", "coLeader") as labels.
func titleize(value string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(value)
	var split strings.Builder
	for idx, r := range replaced {
		if idx > 0 && unicode.IsUpper(r) {
			split.WriteRune(' ')
		}
		split.WriteRune(r)
	}
	words := strings.Fields(split.String())
	for idx, word := range words {
		words[idx] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
