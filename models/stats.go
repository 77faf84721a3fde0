package models

// PlayerStats summarizes a user's results for display
type PlayerStats struct {
	UserID        string  `json:"user_id"`
	Balance       int64   `json:"balance"`
	Wins          int64   `json:"wins"`
	Losses        int64   `json:"losses"`
	WinPercentage float64 `json:"win_percentage"`
	TotalWon      int64   `json:"total_won"`
	TotalLost     int64   `json:"total_lost"`
	NetProfit     int64   `json:"net_profit"`
}

// NewPlayerStats derives display statistics from an account
func NewPlayerStats(account *Account) *PlayerStats {
	stats := &PlayerStats{
		UserID:    account.UserID,
		Balance:   account.Balance,
		Wins:      account.Wins,
		Losses:    account.Losses,
		TotalWon:  account.TotalWon,
		TotalLost: account.TotalLost,
		NetProfit: account.TotalWon - account.TotalLost,
	}
	if played := account.Wins + account.Losses; played > 0 {
		stats.WinPercentage = float64(account.Wins) / float64(played) * 100
	}
	return stats
}
