// Package referral builds the invite links attached to the share action.
// Granting the bonus is trusted: nothing here checks that the share happened.
package referral

import (
	"net/url"
	"strings"
)

const (
	anonymousUser = "newuser"
	startPrefix   = "ref_"
	shareEndpoint = "https://t.me/share/url"
)

// InviteLink returns the bot deep link that carries the inviter's ID as its start parameter.
// The ID is query-escaped so it cannot add parameters of its own.
func InviteLink(botUsername, userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = anonymousUser
	}
	bot := url.PathEscape(strings.TrimPrefix(botUsername, "@"))
	return "https://t.me/" + bot + "?start=" + url.QueryEscape(startPrefix+userID)
}

// ShareURL returns the host share-dialog URL for an invite link and message.
func ShareURL(inviteLink, text string) string {
	return shareEndpoint + "?url=" + url.QueryEscape(inviteLink) + "&text=" + url.QueryEscape(text)
}

// InviterFromStart extracts the inviter ID from a start parameter, if it carries one.
func InviterFromStart(start string) (string, bool) {
	if !strings.HasPrefix(start, startPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(start, startPrefix)
	if id == "" || id == anonymousUser {
		return "", false
	}
	return id, true
}
