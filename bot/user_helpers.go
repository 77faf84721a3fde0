package bot

import (
	"github.com/bwmarrin/discordgo"
)

// interactionUser returns the invoking user's id and display name.
// Guild interactions carry a member, direct messages only a user.
func interactionUser(i *discordgo.InteractionCreate) (id, name string) {
	if i.Member != nil && i.Member.User != nil {
		name = i.Member.Nick
		if name == "" {
			name = i.Member.User.Username
		}
		return i.Member.User.ID, name
	}
	if i.User != nil {
		return i.User.ID, i.User.Username
	}
	return "", ""
}
