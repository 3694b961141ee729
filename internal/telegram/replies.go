package telegram

import (
	"fmt"
	"strings"

	"github.com/tbourn/gitlab-telegram-bot/internal/gitlab"
	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

// Fixed replies. All are Telegram Markdown.
const (
	helpReply = "/help - this message\n" +
		"/ping - ping bot\n" +
		"/reg <token> - bind repo\n" +
		"/bye [token] - unbind repo\n"

	noTalkReply  = "I don't talk, so please don't talk to me."
	badArgsReply = "Could not parse the arguments. Check your quotes."
	faultReply   = "Something went wrong on my side, please try again later."

	regUsageReply     = "Usage: /reg <token>"
	regNotFoundReply  = "Token does not exist!"
	regDuplicateReply = "This chat is already bound to that repository."
	byeNothingReply   = "You have not bound any repository yet."
	byeDoneReply      = "\U0001F63F Fine.\nBye bye."
	byeNotBoundReply  = "Hmm... you do not seem to be bound to that one."
)

func startReply(username string) string {
	return "*Hello!* Welcome to @" + gitlab.Escape(username)
}

func bindReply(res services.BindResult) string {
	switch res.Outcome {
	case services.BindUsage:
		return regUsageReply
	case services.BindNotFound:
		return regNotFoundReply
	case services.BindAlreadyBound:
		return regDuplicateReply
	default:
		name := ""
		if res.Repository != nil {
			name = res.Repository.Name
		}
		return fmt.Sprintf("\U0001F60E Yey! It works. Bound to *%s*.", gitlab.Escape(name))
	}
}

func unbindReply(res services.UnbindResult) string {
	switch res.Outcome {
	case services.UnbindNothing:
		return byeNothingReply
	case services.UnbindNotBound:
		return byeNotBoundReply
	case services.UnbindAmbiguous:
		var b strings.Builder
		b.WriteString("Several repositories are bound here, please pick one.\n")
		b.WriteString("Usage: /bye <token>\n")
		b.WriteString("`token` - *name*\n")
		for _, r := range res.Bound {
			fmt.Fprintf(&b, "`%s` - *%s*\n", r.Token, gitlab.Escape(r.Name))
		}
		return b.String()
	default:
		return byeDoneReply
	}
}
