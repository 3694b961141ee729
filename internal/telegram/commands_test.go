package telegram

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

type stubBinder struct {
	bindRes   services.BindResult
	unbindRes services.UnbindResult
	err       error

	gotSender int64
	gotToken  string
}

func (s *stubBinder) Bind(_ context.Context, sender int64, token string) (services.BindResult, error) {
	s.gotSender, s.gotToken = sender, token
	return s.bindRes, s.err
}

func (s *stubBinder) Unbind(_ context.Context, sender int64, token string) (services.UnbindResult, error) {
	s.gotSender, s.gotToken = sender, token
	return s.unbindRes, s.err
}

func private(text string) *Message {
	return &Message{From: &User{ID: 5}, Chat: Chat{ID: 5, Type: ChatPrivate}, Text: text}
}

func group(text string) *Message {
	return &Message{From: &User{ID: 5}, Chat: Chat{ID: -100, Type: ChatGroup}, Text: text}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in     string
		ok     bool
		name   string
		target string
		args   []string
		err    bool
	}{
		{"hello", false, "", "", nil, false},
		{"/", false, "", "", nil, false},
		{"/ping", true, "ping", "", nil, false},
		{"/PING@Relay_Bot", true, "ping", "Relay_Bot", nil, false},
		{"/reg abc123", true, "reg", "", []string{"abc123"}, false},
		{`/reg "a b" c`, true, "reg", "", []string{"a b", "c"}, false},
		{"/reg\nabc", true, "reg", "", []string{"abc"}, false},
		{`/reg 'unterminated`, true, "reg", "", nil, true},
	}
	for _, tt := range tests {
		cmd, target, ok, err := ParseCommand(tt.in)
		if ok != tt.ok || (err != nil) != tt.err {
			t.Errorf("ParseCommand(%q) ok=%v err=%v; want ok=%v err=%v", tt.in, ok, err, tt.ok, tt.err)
			continue
		}
		if !ok || tt.err {
			continue
		}
		if cmd.Name != tt.name || target != tt.target || len(cmd.Args) != len(tt.args) {
			t.Errorf("ParseCommand(%q) = %+v @%q", tt.in, cmd, target)
			continue
		}
		if len(tt.args) > 0 && !reflect.DeepEqual(cmd.Args, tt.args) {
			t.Errorf("ParseCommand(%q) args = %q; want %q", tt.in, cmd.Args, tt.args)
		}
	}
}

func TestHandleMessage_FixedReplies(t *testing.T) {
	b := NewBot(&stubBinder{}, "relay_bot")
	ctx := context.Background()

	cases := map[string]string{
		"/ping":  "pong",
		"/help":  helpReply,
		"/start": `*Hello!* Welcome to @relay\_bot`,
		"hi":     noTalkReply,
	}
	for in, want := range cases {
		got, err := b.HandleMessage(ctx, private(in))
		if err != nil || got != want {
			t.Errorf("HandleMessage(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestHandleMessage_Quiet(t *testing.T) {
	b := NewBot(&stubBinder{}, "relay_bot")
	ctx := context.Background()

	for _, m := range []*Message{
		nil,
		private("   "),
		private("/unknown"),
		private("/ping@other_bot"),
		group("just chatting"),
	} {
		got, err := b.HandleMessage(ctx, m)
		if err != nil || got != "" {
			t.Errorf("HandleMessage(%+v) = %q, %v; want silence", m, got, err)
		}
	}

	if got, _ := b.HandleMessage(ctx, group("/ping@RELAY_BOT")); got != "pong" {
		t.Errorf("addressed command: got %q; want pong", got)
	}
}

func TestReg_UsesGroupChatAsSender(t *testing.T) {
	sb := &stubBinder{bindRes: services.BindResult{
		Outcome:    services.BindBound,
		Repository: &domain.Repository{Name: "my_repo"},
	}}
	b := NewBot(sb, "relay_bot")

	got, err := b.HandleMessage(context.Background(), group(`/reg "tok 1" extra`))
	if err != nil {
		t.Fatal(err)
	}
	if sb.gotSender != -100 || sb.gotToken != "tok 1" {
		t.Fatalf("Bind(%d, %q); want (-100, \"tok 1\")", sb.gotSender, sb.gotToken)
	}
	if !strings.Contains(got, `*my\_repo*`) {
		t.Fatalf("reply = %q", got)
	}
}

func TestReg_Outcomes(t *testing.T) {
	cases := map[services.BindOutcome]string{
		services.BindUsage:        regUsageReply,
		services.BindNotFound:     regNotFoundReply,
		services.BindAlreadyBound: regDuplicateReply,
	}
	for outcome, want := range cases {
		b := NewBot(&stubBinder{bindRes: services.BindResult{Outcome: outcome}}, "")
		got, err := b.HandleMessage(context.Background(), private("/reg"))
		if err != nil || got != want {
			t.Errorf("%v: got %q, %v; want %q", outcome, got, err, want)
		}
	}
}

func TestBye_Outcomes(t *testing.T) {
	cases := map[services.UnbindOutcome]string{
		services.UnbindNothing:  byeNothingReply,
		services.UnbindUnbound:  byeDoneReply,
		services.UnbindNotBound: byeNotBoundReply,
	}
	for outcome, want := range cases {
		b := NewBot(&stubBinder{unbindRes: services.UnbindResult{Outcome: outcome}}, "")
		got, err := b.HandleMessage(context.Background(), private("/bye tok"))
		if err != nil || got != want {
			t.Errorf("%v: got %q, %v; want %q", outcome, got, err, want)
		}
	}
}

func TestBye_AmbiguousListsBindings(t *testing.T) {
	sb := &stubBinder{unbindRes: services.UnbindResult{
		Outcome: services.UnbindAmbiguous,
		Bound: []domain.BoundRepository{
			{Token: "aaa", Name: "alpha*"},
			{Token: "bbb", Name: "beta"},
		},
	}}
	b := NewBot(sb, "")

	got, err := b.HandleMessage(context.Background(), private("/bye"))
	if err != nil {
		t.Fatal(err)
	}
	if sb.gotToken != "" || sb.gotSender != 5 {
		t.Fatalf("Unbind(%d, %q)", sb.gotSender, sb.gotToken)
	}
	for _, want := range []string{"Usage: /bye <token>", "`aaa` - *alpha\\**", "`bbb` - *beta*"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply missing %q:\n%s", want, got)
		}
	}
}

func TestHandleMessage_BadArgsAndFaults(t *testing.T) {
	b := NewBot(&stubBinder{}, "")
	if got, _ := b.HandleMessage(context.Background(), private(`/reg "open`)); got != badArgsReply {
		t.Fatalf("bad args: got %q", got)
	}

	boom := errors.New("db down")
	b = NewBot(&stubBinder{err: boom}, "")
	if _, err := b.HandleMessage(context.Background(), private("/reg x")); !errors.Is(err, boom) {
		t.Fatalf("fault: err = %v; want boom", err)
	}
}
