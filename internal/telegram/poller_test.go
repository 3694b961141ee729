package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/gitlab-telegram-bot/internal/services"
)

// scriptedSource returns one batch per call, then blocks until ctx is done.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]Update
	errs    []error
	offsets []int64
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type memSender struct {
	mu   sync.Mutex
	sent map[int64][]string
	fail map[int64]bool
	done chan struct{}
	want int
}

func newMemSender(want int) *memSender {
	return &memSender{sent: map[int64][]string{}, fail: map[int64]bool{}, done: make(chan struct{}), want: want}
}

func (m *memSender) SendMessage(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[chatID] = append(m.sent[chatID], text)
	m.want--
	if m.want == 0 {
		close(m.done)
	}
	if m.fail[chatID] {
		return errors.New("send failed")
	}
	return nil
}

func TestPoller_AnswersAndAdvancesOffset(t *testing.T) {
	src := &scriptedSource{
		errs: []error{errors.New("502 bad gateway")},
		batches: [][]Update{{
			{UpdateID: 3, Message: private("/ping")},
			{UpdateID: 4},
			{UpdateID: 5, Message: group("/reg")},
		}},
	}
	snd := newMemSender(2)
	binder := &stubBinder{bindRes: services.BindResult{Outcome: services.BindUsage}}
	p := NewPoller(src, snd, NewBot(binder, "relay_bot"), time.Second)
	p.RetryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	select {
	case <-snd.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for replies")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v; want context.Canceled", err)
	}

	if got := snd.sent[5]; len(got) != 1 || got[0] != "pong" {
		t.Fatalf("private replies = %q", got)
	}
	if got := snd.sent[-100]; len(got) != 1 || got[0] != regUsageReply {
		t.Fatalf("group replies = %q", got)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.offsets) < 2 || src.offsets[0] != 0 || src.offsets[1] != 0 {
		t.Fatalf("offsets = %v; want retry from 0", src.offsets)
	}
	if p.offset != 6 {
		t.Fatalf("next offset = %d; want 6", p.offset)
	}
}

func TestPoller_AnswersChannelPosts(t *testing.T) {
	post := &Message{Chat: Chat{ID: -300, Type: ChatChannel}, Text: "/reg abc"}
	src := &scriptedSource{batches: [][]Update{{{UpdateID: 7, ChannelPost: post}}}}
	snd := newMemSender(1)
	binder := &stubBinder{bindRes: services.BindResult{Outcome: services.BindNotFound}}
	p := NewPoller(src, snd, NewBot(binder, "relay_bot"), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	select {
	case <-snd.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("channel post was not answered")
	}
	snd.mu.Lock()
	defer snd.mu.Unlock()
	if got := snd.sent[-300]; len(got) != 1 || got[0] != regNotFoundReply {
		t.Fatalf("channel replies = %q", got)
	}
	if binder.gotSender != -300 || binder.gotToken != "abc" {
		t.Fatalf("bound sender=%d token=%q; want the channel", binder.gotSender, binder.gotToken)
	}
}

func TestPoller_FaultGetsGenericReply(t *testing.T) {
	src := &scriptedSource{batches: [][]Update{{{UpdateID: 1, Message: private("/bye")}}}}
	snd := newMemSender(1)
	p := NewPoller(src, snd, NewBot(&stubBinder{err: errors.New("db down")}, ""), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	select {
	case <-snd.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out")
	}
	snd.mu.Lock()
	defer snd.mu.Unlock()
	if got := snd.sent[5]; len(got) != 1 || got[0] != faultReply {
		t.Fatalf("replies = %q", got)
	}
}

type chatList []int64

func (c chatList) ListBoundChatIDs(context.Context, *gorm.DB) ([]int64, error) { return c, nil }

type brokenList struct{}

func (brokenList) ListBoundChatIDs(context.Context, *gorm.DB) ([]int64, error) {
	return nil, errors.New("db down")
}

func TestBroadcast(t *testing.T) {
	snd := newMemSender(3)
	snd.fail[2] = true

	n, err := Broadcast(context.Background(), nil, chatList{1, 2, 3}, snd, "back online")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("delivered = %d; want 2", n)
	}
	for _, id := range []int64{1, 2, 3} {
		if len(snd.sent[id]) != 1 || snd.sent[id][0] != "back online" {
			t.Fatalf("chat %d got %q", id, snd.sent[id])
		}
	}

	if n, err := Broadcast(context.Background(), nil, chatList{1}, newMemSender(-1), ""); n != 0 || err != nil {
		t.Fatalf("empty text: %d, %v", n, err)
	}
	if _, err := Broadcast(context.Background(), nil, brokenList{}, snd, "x"); err == nil {
		t.Fatalf("expected lister error")
	}
}
