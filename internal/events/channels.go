package events

import "strings"

// Channel naming
const (
	ChannelPrefixAccount = "channel:account:"
	// ChannelPatternAccounts matches every account channel for PSUBSCRIBE.
	ChannelPatternAccounts = ChannelPrefixAccount + "*"
)

// AccountChannel is the channel carrying one seller account's events.
func AccountChannel(accountID string) string {
	return ChannelPrefixAccount + accountID
}

// AccountFromChannel extracts the account id from an account channel name.
func AccountFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixAccount) {
		return "", false
	}
	id := strings.TrimPrefix(channel, ChannelPrefixAccount)
	return id, id != ""
}
