package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"testing"
	"time"

	"coino/models"
	"coino/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomePtr(o models.Outcome) *models.Outcome {
	return &o
}

func TestFormatBalance(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBalance(tt.in))
		})
	}

	assert.Equal(t, "+1,500", FormatSigned(1500))
	assert.Equal(t, "-20", FormatSigned(-20))
	assert.Equal(t, "0", FormatSigned(0))
}

func TestFormatDiscordTimestamp(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:R>", FormatDiscordTimestamp(ts, "R"))
}

func TestScopeOption(t *testing.T) {
	assert.Equal(t, models.PublicScope, scopeOption(nil))

	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(5)},
		{Name: "room", Type: discordgo.ApplicationCommandOptionString, Value: " r7 "},
	}
	assert.Equal(t, models.RoomScope("r7"), scopeOption(options))

	blank := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "room", Type: discordgo.ApplicationCommandOptionString, Value: "  "},
	}
	assert.Equal(t, models.PublicScope, scopeOption(blank))
}

func TestCommandDefinitions_OfferEveryOutcome(t *testing.T) {
	var bet *discordgo.ApplicationCommand
	for _, cmd := range commandDefinitions() {
		if cmd.Name == "bet" {
			bet = cmd
		}
	}
	require.NotNil(t, bet)
	require.Len(t, bet.Options[0].Choices, len(models.Outcomes))
	for i, choice := range bet.Options[0].Choices {
		assert.Equal(t, models.Outcomes[i].String(), choice.Value)
	}
}

func TestInteractionUser(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{Nick: "Ally", User: &discordgo.User{ID: "1", Username: "alice"}},
	}}
	id, name := interactionUser(guild)
	assert.Equal(t, "1", id)
	assert.Equal(t, "Ally", name)

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "2", Username: "bob"},
	}}
	id, name = interactionUser(dm)
	assert.Equal(t, "2", id)
	assert.Equal(t, "bob", name)
}

func TestBetRejectionMessage(t *testing.T) {
	assert.Equal(t, "Insufficient balance for this bet.",
		betRejectionMessage(fmt.Errorf("have 3: %w", service.ErrInsufficientFunds)))
	assert.Equal(t, "You already have a bet in this round.", betRejectionMessage(service.ErrDuplicateBet))
	assert.Contains(t, betRejectionMessage(service.ErrStaleRound), "No round")
	assert.Equal(t, "Unable to place bet. Please try again.", betRejectionMessage(errors.New("boom")))
}

func TestBuildSettlementEmbed(t *testing.T) {
	completed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	round := &models.Round{ID: 42, Scope: models.PublicScope, BetCount: 3, CompletedAt: &completed}
	result := &models.SettlementResult{
		RoundID:      42,
		Outcome:      models.OutcomeGreen,
		TotalStakes:  3000,
		Pool:         200,
		WinnersBonus: 180,
		HouseShare:   20,
		Winners:      1,
		Losers:       2,
	}

	embed := buildSettlementEmbed(round, result)

	assert.Equal(t, "🎡 Public round #42", embed.Title)
	assert.Contains(t, embed.Description, "GREEN")
	assert.Equal(t, embedColor(models.OutcomeGreen), embed.Color)
	assert.NotEqual(t, ColorPrimary, embed.Color)
	assert.Equal(t, "attachment://"+stripFilename, embed.Image.URL)
	require.Len(t, embed.Fields, 4)
	assert.Contains(t, embed.Fields[0].Value, "3,000")
	assert.Contains(t, embed.Fields[3].Value, "**180**")
	assert.Equal(t, "2024-05-01T12:00:00Z", embed.Timestamp)
}

func TestBuildBetPlacedEmbed_WaitingRoomBet(t *testing.T) {
	bet := &models.Bet{Scope: models.RoomScope("r1"), Outcome: models.OutcomeRed, Amount: 1500, Status: models.BetStatusWaiting}
	embed := buildBetPlacedEmbed(bet)

	assert.Contains(t, embed.Title, "Room r1")
	assert.Contains(t, embed.Description, "1,500")
	assert.Contains(t, embed.Footer.Text, "Waiting")
}

func TestOutcomeStrip_Render(t *testing.T) {
	rounds := []*models.Round{
		{ID: 3, WinningOutcome: outcomePtr(models.OutcomeBlue)},
		{ID: 2}, // still running, skipped
		{ID: 1, WinningOutcome: outcomePtr(models.OutcomeOrange)},
	}

	data, err := NewOutcomeStrip().Render(rounds)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 12*2+2*56, img.Bounds().Dx())
	assert.Equal(t, 96, img.Bounds().Dy())

	_, err = NewOutcomeStrip().Render([]*models.Round{{ID: 9}})
	assert.Error(t, err)
}

type fakeSender struct {
	channelID string
	sent      []*discordgo.MessageSend
	images    [][]byte
	err       error
}

func (f *fakeSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.channelID = channelID
	f.sent = append(f.sent, data)
	for _, file := range data.Files {
		body, _ := io.ReadAll(file.Reader)
		f.images = append(f.images, body)
	}
	return &discordgo.Message{ID: "m1"}, nil
}

type fakeHistory struct {
	rounds []*models.Round
	err    error
}

func (f *fakeHistory) GetHistory(_ context.Context, _ models.Scope, _ int) ([]*models.Round, error) {
	return f.rounds, f.err
}

func TestAnnouncer_PostsEmbedWithStrip(t *testing.T) {
	sender := &fakeSender{}
	history := &fakeHistory{rounds: []*models.Round{
		{ID: 6, WinningOutcome: outcomePtr(models.OutcomeRed)},
	}}
	announcer := NewAnnouncer(sender, "results", history)

	round := &models.Round{ID: 7, Scope: models.PublicScope}
	result := &models.SettlementResult{RoundID: 7, Outcome: models.OutcomeYellow}

	require.NoError(t, announcer.AnnounceSettlement(context.Background(), round, result))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "results", sender.channelID)
	require.Len(t, sender.sent[0].Files, 1)
	assert.Equal(t, stripFilename, sender.sent[0].Files[0].Name)

	img, err := png.Decode(bytes.NewReader(sender.images[0]))
	require.NoError(t, err)
	// settled round prepended to the one in history
	assert.Equal(t, 12*2+2*56, img.Bounds().Dx())
}

func TestAnnouncer_PostsWithoutStripWhenHistoryFails(t *testing.T) {
	sender := &fakeSender{}
	announcer := NewAnnouncer(sender, "results", &fakeHistory{err: errors.New("db down")})

	round := &models.Round{ID: 7, Scope: models.PublicScope}
	result := &models.SettlementResult{RoundID: 7, Outcome: models.OutcomeYellow}

	require.NoError(t, announcer.AnnounceSettlement(context.Background(), round, result))
	require.Len(t, sender.sent, 1)
	assert.Empty(t, sender.sent[0].Files)
	assert.Nil(t, sender.sent[0].Embeds[0].Image)
}

func TestAnnouncer_SkipsReplaysAndUnconfiguredChannel(t *testing.T) {
	sender := &fakeSender{}
	round := &models.Round{ID: 7, Scope: models.PublicScope}

	announcer := NewAnnouncer(sender, "results", &fakeHistory{})
	require.NoError(t, announcer.AnnounceSettlement(context.Background(), round, &models.SettlementResult{AlreadyProcessed: true}))

	silent := NewAnnouncer(sender, "", &fakeHistory{})
	require.NoError(t, silent.AnnounceSettlement(context.Background(), round, &models.SettlementResult{Outcome: models.OutcomeRed}))

	assert.Empty(t, sender.sent)
}

func TestAnnouncer_ReturnsSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("forbidden")}
	announcer := NewAnnouncer(sender, "results", &fakeHistory{})

	err := announcer.AnnounceSettlement(context.Background(),
		&models.Round{ID: 1, Scope: models.PublicScope},
		&models.SettlementResult{Outcome: models.OutcomeBlue})
	assert.ErrorContains(t, err, "forbidden")
}
