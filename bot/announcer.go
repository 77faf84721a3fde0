package bot

import (
	"bytes"
	"context"
	"fmt"

	"coino/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	stripFilename = "recent-results.png"
	stripRounds   = 12
)

// messageSender is the part of the discord session used to post results
type messageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// historyReader loads recent completed rounds for the outcome strip
type historyReader interface {
	GetHistory(ctx context.Context, scope models.Scope, limit int) ([]*models.Round, error)
}

// Announcer posts settled rounds to a channel with an embed and the recent
// results strip
type Announcer struct {
	sender    messageSender
	channelID string
	history   historyReader
	strip     *OutcomeStrip
}

// NewAnnouncer creates an announcer posting to channelID
func NewAnnouncer(sender messageSender, channelID string, history historyReader) *Announcer {
	return &Announcer{
		sender:    sender,
		channelID: channelID,
		history:   history,
		strip:     NewOutcomeStrip(),
	}
}

// AnnounceSettlement posts the result of a settled round
func (a *Announcer) AnnounceSettlement(ctx context.Context, round *models.Round, result *models.SettlementResult) error {
	if a.channelID == "" {
		return nil
	}
	if result.AlreadyProcessed {
		return nil
	}
	if round.WinningOutcome == nil && result.Outcome != "" {
		settled := *round
		settled.WinningOutcome = &result.Outcome
		round = &settled
	}

	embed := buildSettlementEmbed(round, result)
	message := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	}

	image, err := a.renderStrip(ctx, round)
	if err != nil {
		// The result is still worth posting without the picture.
		log.WithFields(log.Fields{
			"scope":   round.Scope,
			"roundId": round.ID,
			"error":   err,
		}).Warn("Failed to render outcome strip")
		embed.Image = nil
	} else {
		message.Files = []*discordgo.File{
			{
				Name:        stripFilename,
				ContentType: "image/png",
				Reader:      bytes.NewReader(image),
			},
		}
	}

	if _, err := a.sender.ChannelMessageSendComplex(a.channelID, message); err != nil {
		return fmt.Errorf("failed to send settlement message: %w", err)
	}
	return nil
}

func (a *Announcer) renderStrip(ctx context.Context, round *models.Round) ([]byte, error) {
	rounds, err := a.history.GetHistory(ctx, round.Scope, stripRounds)
	if err != nil {
		return nil, fmt.Errorf("failed to load round history: %w", err)
	}

	// The settled round may not be visible in history yet.
	if len(rounds) == 0 || rounds[0].ID != round.ID {
		rounds = append([]*models.Round{round}, rounds...)
		if len(rounds) > stripRounds {
			rounds = rounds[:stripRounds]
		}
	}
	return a.strip.Render(rounds)
}
