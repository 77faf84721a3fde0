package bot

import (
	"fmt"
	"strings"

	"coino/models"

	"github.com/bwmarrin/discordgo"
)

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorDanger  = 0xED4245 // Red
	ColorWarning = 0xFEE75C // Yellow
)

var outcomeEmoji = map[models.Outcome]string{
	models.OutcomeRed:    "🔴",
	models.OutcomeBlue:   "🔵",
	models.OutcomeGreen:  "🟢",
	models.OutcomeYellow: "🟡",
	models.OutcomePurple: "🟣",
	models.OutcomeOrange: "🟠",
}

// embedColor returns the embed color matching an outcome
func embedColor(outcome models.Outcome) int {
	c, ok := outcomeRGB[outcome]
	if !ok {
		return ColorPrimary
	}
	return int(c[0]*255)<<16 | int(c[1]*255)<<8 | int(c[2]*255)
}

func scopeTitle(scope models.Scope) string {
	if scope.IsRoom() {
		return "Room " + scope.RoomID()
	}
	return "Public"
}

func formatOutcome(outcome models.Outcome) string {
	return fmt.Sprintf("%s **%s**", outcomeEmoji[outcome], strings.ToUpper(outcome.String()))
}

// buildSettlementEmbed announces the result of a settled round
func buildSettlementEmbed(round *models.Round, result *models.SettlementResult) *discordgo.MessageEmbed {
	outcome := result.Outcome
	if outcome == "" && round.WinningOutcome != nil {
		outcome = *round.WinningOutcome
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Bets",
			Value:  fmt.Sprintf("%d bets • %s coins staked", round.BetCount, FormatBalance(result.TotalStakes)),
			Inline: false,
		},
		{
			Name:   "Winners",
			Value:  fmt.Sprintf("%d", result.Winners),
			Inline: true,
		},
		{
			Name:   "Losers",
			Value:  fmt.Sprintf("%d", result.Losers),
			Inline: true,
		},
	}

	if result.Pool > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Pool",
			Value: fmt.Sprintf("• Forfeited: **%s**\n• Winners' bonus: **%s**\n• House: **%s**",
				FormatBalance(result.Pool),
				FormatBalance(result.WinnersBonus),
				FormatBalance(result.HouseShare),
			),
			Inline: false,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎡 %s round #%d", scopeTitle(round.Scope), round.ID),
		Description: fmt.Sprintf("The wheel landed on %s", formatOutcome(outcome)),
		Color:       embedColor(outcome),
		Fields:      fields,
		Image: &discordgo.MessageEmbedImage{
			URL: "attachment://" + stripFilename,
		},
	}
	if round.CompletedAt != nil {
		embed.Timestamp = round.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return embed
}

// buildBetPlacedEmbed confirms an accepted bet to the bettor
func buildBetPlacedEmbed(bet *models.Bet) *discordgo.MessageEmbed {
	description := fmt.Sprintf("**%s coins** on %s", FormatBalance(bet.Amount), formatOutcome(bet.Outcome))
	footer := "Good luck!"
	if bet.Status == models.BetStatusWaiting {
		footer = "Waiting for more players before the round starts"
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎟️ Bet placed • %s", scopeTitle(bet.Scope)),
		Description: description,
		Color:       embedColor(bet.Outcome),
		Footer: &discordgo.MessageEmbedFooter{
			Text: footer,
		},
	}
}

// buildRoundEmbed shows the active round of a scope
func buildRoundEmbed(round *models.Round) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Bets",
			Value:  fmt.Sprintf("%d", round.BetCount),
			Inline: true,
		},
		{
			Name:   "Staked",
			Value:  FormatBalance(round.TotalAmount),
			Inline: true,
		},
	}
	if round.Duration > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Closes",
			Value:  FormatDiscordTimestamp(round.Deadline(), "R"),
			Inline: true,
		})
	}

	return &discordgo.MessageEmbed{
		Title:  fmt.Sprintf("🎡 %s round #%d", scopeTitle(round.Scope), round.ID),
		Color:  ColorPrimary,
		Fields: fields,
	}
}

// buildStatsEmbed shows a player's balance and record
func buildStatsEmbed(name string, stats *models.PlayerStats) *discordgo.MessageEmbed {
	color := ColorSuccess
	if stats.NetProfit < 0 {
		color = ColorDanger
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("💰 %s", name),
		Description: fmt.Sprintf("Balance: **%s coins**", FormatBalance(stats.Balance)),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Record",
				Value:  fmt.Sprintf("%dW / %dL (%.1f%%)", stats.Wins, stats.Losses, stats.WinPercentage),
				Inline: true,
			},
			{
				Name:   "Net",
				Value:  FormatSigned(stats.NetProfit),
				Inline: true,
			},
		},
	}
}
