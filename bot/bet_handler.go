package bot

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"coino/models"
	"coino/service"

	"github.com/bwmarrin/discordgo"
)

// betRejectionMessage turns a bet intake error into a user facing reply
func betRejectionMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		return "Insufficient balance for this bet."
	case errors.Is(err, service.ErrDuplicateBet):
		return "You already have a bet in this round."
	case errors.Is(err, service.ErrRoundNotActive), errors.Is(err, service.ErrStaleRound):
		return "No round is taking bets right now. Try again in a moment."
	case errors.Is(err, service.ErrRoomNotFound):
		return "That room does not exist."
	case errors.Is(err, service.ErrValidation):
		return "Invalid bet. Check the color and amount."
	default:
		return "Unable to place bet. Please try again."
	}
}

// handleBetCommand handles the /bet slash command
func (b *Bot) handleBetCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	userID, name := interactionUser(i)
	if userID == "" {
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	options := i.ApplicationCommandData().Options
	var (
		rawOutcome string
		amount     int64
	)
	for _, opt := range options {
		switch opt.Name {
		case "color":
			rawOutcome = opt.StringValue()
		case "amount":
			amount = opt.IntValue()
		}
	}

	outcome, err := models.ParseOutcome(rawOutcome)
	if err != nil {
		b.respondWithError(s, i, "Unknown color.")
		return
	}
	if amount <= 0 {
		b.respondWithError(s, i, "Amount must be positive.")
		return
	}

	if _, err := b.services.Accounts.GetOrCreate(ctx, userID, name); err != nil {
		log.Errorf("Error getting/creating account %s: %v", userID, err)
		b.respondWithError(s, i, "Unable to process request. Please try again.")
		return
	}

	scope := scopeOption(options)
	bet, err := b.services.Betting.PlaceBet(ctx, userID, scope, outcome, amount)
	if err != nil {
		log.WithFields(log.Fields{
			"user_id": userID,
			"scope":   scope,
			"reason":  service.RejectionReason(err),
		}).Infof("Bet rejected: %v", err)
		b.respondWithError(s, i, betRejectionMessage(err))
		return
	}

	respond(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{buildBetPlacedEmbed(bet)},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
}

// handleRoundCommand shows the active round of the requested scope
func (b *Bot) handleRoundCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	scope := scopeOption(i.ApplicationCommandData().Options)
	round, err := b.services.Rounds.GetActiveRound(ctx, scope)
	if err != nil {
		log.Errorf("Error getting active round for %s: %v", scope, err)
		b.respondWithError(s, i, "Unable to retrieve the round. Please try again.")
		return
	}
	if round == nil {
		b.respondWithError(s, i, "No round is taking bets right now.")
		return
	}

	respond(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{buildRoundEmbed(round)},
	})
}
