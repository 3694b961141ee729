package telegram

import (
	"context"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/text/cases"

	"github.com/tbourn/gitlab-telegram-bot/internal/observability"
	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

// Binder is the binding service as seen by the bot.
type Binder interface {
	Bind(ctx context.Context, sender int64, token string) (services.BindResult, error)
	Unbind(ctx context.Context, sender int64, token string) (services.UnbindResult, error)
}

// Command is a parsed slash command.
type Command struct {
	// Name is case-folded, without the leading slash or @bot suffix.
	Name string
	// Args are the shell-tokenized arguments.
	Args []string
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// commandHandler answers one command for sender.
type commandHandler func(ctx context.Context, b *Bot, sender int64, cmd Command) (string, error)

var commands = map[string]commandHandler{
	"start": func(_ context.Context, b *Bot, _ int64, _ Command) (string, error) {
		return startReply(b.Username), nil
	},
	"help": func(context.Context, *Bot, int64, Command) (string, error) {
		return helpReply, nil
	},
	"ping": func(context.Context, *Bot, int64, Command) (string, error) {
		return "pong", nil
	},
	"reg": func(ctx context.Context, b *Bot, sender int64, cmd Command) (string, error) {
		res, err := b.Binder.Bind(ctx, sender, cmd.Arg(0))
		if err != nil {
			return "", err
		}
		return bindReply(res), nil
	},
	"bye": func(ctx context.Context, b *Bot, sender int64, cmd Command) (string, error) {
		res, err := b.Binder.Unbind(ctx, sender, cmd.Arg(0))
		if err != nil {
			return "", err
		}
		return unbindReply(res), nil
	},
}

// Bot routes inbound messages to command handlers and produces replies.
type Bot struct {
	Binder Binder
	// Username is the bot's @name without the @; used for the welcome text
	// and to ignore commands addressed to other bots.
	Username string
}

// NewBot constructs a Bot.
func NewBot(b Binder, username string) *Bot {
	return &Bot{Binder: b, Username: username}
}

// ParseCommand splits "/name@bot arg1 'arg two'" into its parts. ok is false
// when text is not a command. target is the @bot suffix, if any.
func ParseCommand(text string) (cmd Command, target string, ok bool, err error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, "", false, nil
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		head, rest = head[:i], head[i+1:]+" "+rest
	}
	name, target, _ := strings.Cut(head, "@")
	if name == "" {
		return Command{}, "", false, nil
	}

	args, err := shlex.Split(rest)
	cmd = Command{Name: cases.Fold().String(name), Args: args}
	return cmd, target, true, err
}

// HandleMessage returns the reply for msg, or "" when the bot should stay
// quiet. Only storage faults are returned as errors.
func (b *Bot) HandleMessage(ctx context.Context, msg *Message) (string, error) {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return "", nil
	}

	cmd, target, ok, perr := ParseCommand(msg.Text)
	if !ok {
		if msg.Chat.Type == ChatPrivate {
			return noTalkReply, nil
		}
		return "", nil
	}
	if target != "" && b.Username != "" && !strings.EqualFold(target, b.Username) {
		return "", nil
	}

	h, found := commands[cmd.Name]
	if !found {
		return "", nil
	}
	if perr != nil {
		observability.BotCommands.WithLabelValues(cmd.Name, "bad_args").Inc()
		return badArgsReply, nil
	}

	reply, err := h(ctx, b, msg.SenderID(), cmd)
	if err != nil {
		observability.BotCommands.WithLabelValues(cmd.Name, "error").Inc()
		return "", err
	}
	observability.BotCommands.WithLabelValues(cmd.Name, "ok").Inc()
	return reply, nil
}
