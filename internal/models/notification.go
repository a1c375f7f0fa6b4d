package models

// Notification channel names
const (
	ChannelEmail    = "email"
	ChannelDiscord  = "discord"
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
)

// ChannelResult is the delivery result for one channel
type ChannelResult struct {
	Channel string `json:"channel"`
	Err     error  `json:"-"`
}

// OK reports whether the channel delivered the alert
func (r ChannelResult) OK() bool {
	return r.Err == nil
}
