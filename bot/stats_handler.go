package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// handleBalanceCommand shows the caller's balance and record
func (b *Bot) handleBalanceCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	userID, name := interactionUser(i)
	if userID == "" {
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	if _, err := b.services.Accounts.GetOrCreate(ctx, userID, name); err != nil {
		log.Errorf("Error getting/creating account %s: %v", userID, err)
		b.respondWithError(s, i, "Unable to retrieve balance. Please try again.")
		return
	}

	stats, err := b.services.Accounts.GetStats(ctx, userID)
	if err != nil {
		log.Errorf("Error getting stats for %s: %v", userID, err)
		b.respondWithError(s, i, "Unable to retrieve balance. Please try again.")
		return
	}

	respond(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{buildStatsEmbed(name, stats)},
	})
}
