package bot

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"coino/service"

	"github.com/bwmarrin/discordgo"
)

// Config holds bot configuration
type Config struct {
	Token     string
	GuildID   string
	ChannelID string // results channel
}

// Services are the engine operations the bot exposes as slash commands
type Services struct {
	Accounts service.AccountService
	Betting  service.BettingService
	Rounds   service.RoundService
}

type Bot struct {
	config    Config
	session   *discordgo.Session
	services  Services
	announcer *Announcer
}

func New(config Config, services Services) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	bot := &Bot{
		config:    config,
		session:   dg,
		services:  services,
		announcer: NewAnnouncer(dg, config.ChannelID, services.Rounds),
	}

	dg.AddHandler(bot.handleCommands)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// Announcer posts settlement results to the configured channel
func (b *Bot) Announcer() *Announcer {
	return b.announcer
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "bet":
		b.handleBetCommand(s, i)
	case "balance":
		b.handleBalanceCommand(s, i)
	case "round":
		b.handleRoundCommand(s, i)
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Errorf("Error responding to %s command: %v", i.ApplicationCommandData().Name, err)
	}
}

func (b *Bot) respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Error sending error response: %v", err)
	}
}
