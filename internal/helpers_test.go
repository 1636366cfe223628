package internal_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/koopa0/system-design/covey-rooms/internal"
)

// 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// fakeVideo 記錄呼叫的影音服務
type fakeVideo struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
	count atomic.Int64
}

func (f *fakeVideo) IssueToken(ctx context.Context, roomID, playerID string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, [2]string{roomID, playerID})
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	return fmt.Sprintf("video-%d", f.count.Add(1)), nil
}

func (f *fakeVideo) Calls() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.calls...)
}

var errVideoDown = errors.New("video provider unavailable")

func newTestManager() (*internal.Manager, *fakeVideo) {
	video := &fakeVideo{}
	return internal.NewManager(video, testLogger()), video
}

func newTestRoom(name string) (*internal.Room, *fakeVideo) {
	video := &fakeVideo{}
	return internal.NewRoom("room_test", name, true, "secret", internal.DefaultMaxOccupancy, video), video
}

// listenerCall 一次回呼
type listenerCall struct {
	Method string
	Player *internal.Player
}

// recordingListener 記錄所有回呼的 RoomListener
type recordingListener struct {
	name  string
	mu    sync.Mutex
	calls []listenerCall
	trace *callTrace
}

func newRecordingListener(name string, trace *callTrace) *recordingListener {
	return &recordingListener{name: name, trace: trace}
}

func (l *recordingListener) record(method string, p *internal.Player) {
	l.mu.Lock()
	l.calls = append(l.calls, listenerCall{Method: method, Player: p})
	l.mu.Unlock()
	if l.trace != nil {
		l.trace.add(l.name + "." + method)
	}
}

func (l *recordingListener) OnPlayerJoined(p *internal.Player)       { l.record("joined", p) }
func (l *recordingListener) OnPlayerMoved(p *internal.Player)        { l.record("moved", p) }
func (l *recordingListener) OnPlayerDisconnected(p *internal.Player) { l.record("disconnected", p) }
func (l *recordingListener) OnRoomDestroyed()                        { l.record("destroyed", nil) }

func (l *recordingListener) Count(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (l *recordingListener) Players(method string) []*internal.Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*internal.Player
	for _, c := range l.calls {
		if c.Method == method {
			out = append(out, c.Player)
		}
	}
	return out
}

// callTrace 跨 listener 的呼叫順序
type callTrace struct {
	mu    sync.Mutex
	items []string
}

func (t *callTrace) add(s string) {
	t.mu.Lock()
	t.items = append(t.items, s)
	t.mu.Unlock()
}

func (t *callTrace) Items() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.items...)
}

// emitted 一次 Emit
type emitted struct {
	Event string
	Data  any
}

// fakeSocket 記錄 Emit / Disconnect 的 Socket
type fakeSocket struct {
	mu           sync.Mutex
	emits        []emitted
	disconnected int
}

func (s *fakeSocket) Emit(event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emits = append(s.emits, emitted{Event: event, Data: data})
}

func (s *fakeSocket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected++
}

func (s *fakeSocket) Emits() []emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emitted(nil), s.emits...)
}

func (s *fakeSocket) EmittedWith(event string, data any) bool {
	for _, e := range s.Emits() {
		if e.Event == event && e.Data == data {
			return true
		}
	}
	return false
}

func (s *fakeSocket) Disconnected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}
