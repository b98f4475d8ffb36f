// Package bot is the Discord front end: a server list with power buttons.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eggmanager/internal/domain"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	listCommand = "!servers"

	// Discord message limits.
	maxActionRows  = 5
	maxEmbedFields = 25

	embedColor     = 0x0099FF
	requestTimeout = 30 * time.Second
)

// Controller is the part of the control service the bot drives.
type Controller interface {
	ResolveAndAggregate(ctx context.Context, caller domain.Caller) ([]domain.ServerSummary, error)
	PerformPower(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, signal string) (domain.ActionResult, error)
}

// discord is the slice of *discordgo.Session the handlers use.
type discord interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Bot struct {
	control Controller
	log     *zap.Logger
}

func New(control Controller, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{control: control, log: log.Named("discord")}
}

// Run connects to the gateway and serves until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info("discord bot connected", zap.String("user", r.User.Username))
	})
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessage(ctx, s, m)
	})
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.onInteraction(ctx, s, i)
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	<-ctx.Done()
	return dg.Close()
}

// callerFor acts with admin scope, which is what lets the bot list and
// control every tenant's servers. The Discord user is kept for the action log.
func callerFor(user *discordgo.User) domain.Caller {
	name := "discord"
	if user != nil {
		name = "discord:" + user.Username
	}
	return domain.Caller{ID: "discord-bot", Username: name, Role: domain.RoleAdmin, IP: "discord"}
}

func (b *Bot) onMessage(ctx context.Context, s discord, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if strings.TrimSpace(m.Content) != listCommand {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reply := &discordgo.MessageSend{Reference: m.Reference()}
	servers, err := b.control.ResolveAndAggregate(ctx, callerFor(m.Author))
	switch {
	case err != nil:
		b.log.Error("listing servers failed", zap.Error(err))
		reply.Content = "No servers found or error fetching servers."
	case len(servers) == 0:
		reply.Content = "No servers found or error fetching servers."
	default:
		reply.Embeds = []*discordgo.MessageEmbed{serverEmbed(servers)}
		reply.Components = powerRows(servers)
	}

	if _, err := s.ChannelMessageSendComplex(m.ChannelID, reply); err != nil {
		b.log.Warn("sending server list failed", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}

func serverEmbed(servers []domain.ServerSummary) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Game Servers",
		Color:       embedColor,
		Description: "Here are your available servers:",
	}
	for i, srv := range servers {
		if i == maxEmbedFields {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("%s (%s)", srv.Name, srv.OwnerName),
			Value:  fmt.Sprintf("ID: `%s`\nState: **%s**", srv.ID, srv.State),
			Inline: true,
		})
	}
	return embed
}

// powerRows gives each server one row of buttons, up to Discord's row limit.
func powerRows(servers []domain.ServerSummary) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, srv := range servers {
		if len(rows) == maxActionRows {
			break
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Start", Style: discordgo.SuccessButton, CustomID: customID(domain.SignalStart, srv)},
			discordgo.Button{Label: "Stop", Style: discordgo.DangerButton, CustomID: customID(domain.SignalStop, srv)},
			discordgo.Button{Label: "Restart", Style: discordgo.PrimaryButton, CustomID: customID(domain.SignalRestart, srv)},
		}})
	}
	return rows
}

func customID(sig domain.Signal, srv domain.ServerSummary) string {
	return fmt.Sprintf("%s_%s_%s", sig, srv.ID, srv.OwnerID)
}

func parseCustomID(id string) (action, serverID, ownerID string, ok bool) {
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func (b *Bot) onInteraction(ctx context.Context, s discord, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	action, serverID, ownerID, ok := parseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.log.Warn("deferring interaction failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := b.control.PerformPower(ctx, callerFor(interactionUser(i)), ownerID, serverID, action)
	content := powerReply(action, serverID, res, err)
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		b.log.Warn("editing interaction reply failed", zap.Error(err))
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func powerReply(action, serverID string, res domain.ActionResult, err error) string {
	if errors.Is(err, domain.ErrMissingCredentials) {
		return "Owner credentials not found."
	}
	if err == nil && res.Success {
		return fmt.Sprintf("Signal **%s** sent to server `%s`.", action, serverID)
	}
	reply := fmt.Sprintf("Failed to send signal **%s** to server `%s`.", action, serverID)
	if res.Message != "" {
		reply += " " + res.Message
	}
	return reply
}
