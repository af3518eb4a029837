package services

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
)

type friendRequestEmailParams struct {
	SenderUsername string
	RequestID      uuid.UUID
	BaseURL        string
}

type friendAcceptedEmailParams struct {
	AccepterUsername string
	BaseURL          string
}

func buildFriendRequestEmail(params friendRequestEmailParams) (string, string, string) {
	sender := params.SenderUsername
	friendsURL := fmt.Sprintf("%s/#friends?request=%s", params.BaseURL, params.RequestID)
	safeFriendsURL := templateEscape(friendsURL)

	subject := sanitizeSubject(fmt.Sprintf("%s sent you a friend request", sender))

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #333; font-size: 24px;">Confab</h1>
  <p style="font-size: 16px;"><strong>%s</strong> wants to be your friend.</p>
  <p style="color: #666;">Accept the request to start chatting.</p>
  <p>
    <a href="%s" style="display: inline-block; background: #4657d8; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px; margin: 12px 0;">View request</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
  <p style="color: #999; font-size: 12px;">Confab - confab.chat</p>
</body>
</html>`,
		templateEscape(sender),
		safeFriendsURL,
	)

	text := fmt.Sprintf(`%s wants to be your friend.

Accept the request to start chatting: %s

--
Confab
confab.chat`,
		sender,
		friendsURL,
	)

	return subject, htmlBody, text
}

func buildFriendAcceptedEmail(params friendAcceptedEmailParams) (string, string, string) {
	accepter := params.AccepterUsername
	chatURL := fmt.Sprintf("%s/#chat", params.BaseURL)
	safeChatURL := templateEscape(chatURL)

	subject := sanitizeSubject(fmt.Sprintf("%s accepted your friend request", accepter))

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #333; font-size: 24px;">Confab</h1>
  <p style="font-size: 16px;"><strong>%s</strong> accepted your friend request.</p>
  <p style="color: #666;">You can message each other now.</p>
  <p>
    <a href="%s" style="display: inline-block; background: #4657d8; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px; margin: 12px 0;">Start chatting</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
  <p style="color: #999; font-size: 12px;">Confab - confab.chat</p>
</body>
</html>`,
		templateEscape(accepter),
		safeChatURL,
	)

	text := fmt.Sprintf(`%s accepted your friend request.

You can message each other now: %s

--
Confab
confab.chat`,
		accepter,
		chatURL,
	)

	return subject, htmlBody, text
}

func templateEscape(s string) string {
	return html.EscapeString(s)
}

func sanitizeSubject(subject string) string {
	cleaned := strings.ReplaceAll(subject, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > 120 {
		cleaned = cleaned[:117] + "..."
	}
	return cleaned
}
