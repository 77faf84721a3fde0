package bot

import (
	"fmt"
	"strings"

	"coino/models"

	"github.com/bwmarrin/discordgo"
)

func outcomeChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(models.Outcomes))
	for _, outcome := range models.Outcomes {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s %s", outcomeEmoji[outcome], strings.ToUpper(outcome.String()[:1])+outcome.String()[1:]),
			Value: outcome.String(),
		})
	}
	return choices
}

func roomOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "room",
		Description: description,
		Required:    false,
	}
}

// commandDefinitions lists the slash commands the bot serves
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "bet",
			Description: "Bet on the color the next wheel spin lands on",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "color",
					Description: "Color to bet on",
					Required:    true,
					Choices:     outcomeChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Amount to stake in coins",
					Required:    true,
				},
				roomOption("Private room to bet in (defaults to the public game)"),
			},
		},
		{
			Name:        "balance",
			Description: "Check your balance and record",
		},
		{
			Name:        "round",
			Description: "Show the round currently taking bets",
			Options: []*discordgo.ApplicationCommandOption{
				roomOption("Private room to show (defaults to the public game)"),
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	for _, cmd := range commandDefinitions() {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}
	return nil
}

// scopeOption reads the optional room option of a command
func scopeOption(options []*discordgo.ApplicationCommandInteractionDataOption) models.Scope {
	for _, opt := range options {
		if opt.Name == "room" {
			if room := strings.TrimSpace(opt.StringValue()); room != "" {
				return models.RoomScope(room)
			}
		}
	}
	return models.PublicScope
}
