package delivery

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBrief() *core.Brief {
	return &core.Brief{
		ID:          "b-1",
		GeneratedAt: time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC),
		Threshold:   0.65,
		Text:        "<h3>Today</h3><p>Budget review needs sign-off.</p>",
		Selected: []core.Message{
			{ID: "m1", Sender: "boss@company.com", Subject: "Budget <review>", Score: 0.82},
		},
		Stats: core.BriefStats{TotalMessages: 12, SelectedCount: 1, CriticalCount: 1},
	}
}

type received struct {
	mu   sync.Mutex
	from string
	to   []string
	data []byte
}

type testBackend struct {
	got *received
}

func (b *testBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &testSession{got: b.got}, nil
}

type testSession struct {
	got *received
}

func (s *testSession) Reset() {}

func (s *testSession) Logout() error { return nil }

func (s *testSession) AuthPlain(_, _ string) error { return nil }

func (s *testSession) Mail(from string, _ *smtp.MailOptions) error {
	s.got.mu.Lock()
	defer s.got.mu.Unlock()
	s.got.from = from
	return nil
}

func (s *testSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.got.mu.Lock()
	defer s.got.mu.Unlock()
	s.got.to = append(s.got.to, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.got.mu.Lock()
	defer s.got.mu.Unlock()
	s.got.data = data
	return nil
}

func startSMTPServer(t *testing.T) (int, *received) {
	t.Helper()
	got := &received{}
	server := smtp.NewServer(&testBackend{got: got})
	server.Domain = "localhost"
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.Serve(l)
	}()
	t.Cleanup(func() { _ = server.Close() })

	return l.Addr().(*net.TCPAddr).Port, got
}

func TestSMTPDeliver(t *testing.T) {
	port, got := startSMTPServer(t)

	logger := zap.NewNop()
	d, err := NewSMTPDelivery(config.SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		From:     "brief@example.com",
		StartTLS: true,
	}, logger, utils.NewTextProcessor(logger))
	require.NoError(t, err)
	assert.Equal(t, "smtp", d.Method())

	require.NoError(t, d.Deliver(context.Background(), testBrief(), "me@example.com"))

	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, "brief@example.com", got.from)
	assert.Equal(t, []string{"me@example.com"}, got.to)

	env, err := enmime.ReadEnvelope(bytes.NewReader(got.data))
	require.NoError(t, err)
	assert.Equal(t, "Daily Brief for Mon Mar 4: 1 important emails", env.GetHeader("Subject"))
	assert.Equal(t, "b-1", env.GetHeader("X-Brief-Id"))
	assert.Contains(t, env.HTML, "<h3>Today</h3>")
	assert.Contains(t, env.HTML, "Budget &lt;review&gt;")
	assert.Contains(t, env.Text, "Budget review needs sign-off.")
}

func TestSMTPDeliverConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	logger := zap.NewNop()
	d, err := NewSMTPDelivery(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "brief@example.com"}, logger, utils.NewTextProcessor(logger))
	require.NoError(t, err)

	assert.Error(t, d.Deliver(context.Background(), testBrief(), "me@example.com"))
}

func TestNewSMTPDeliveryRequiresFrom(t *testing.T) {
	logger := zap.NewNop()
	_, err := NewSMTPDelivery(config.SMTPConfig{Host: "smtp.example.com"}, logger, utils.NewTextProcessor(logger))
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestFileDeliver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "briefs")
	d := NewFileDelivery(dir, zap.NewNop())
	assert.Equal(t, "file", d.Method())

	require.NoError(t, d.Deliver(context.Background(), testBrief(), ""))

	content, err := os.ReadFile(filepath.Join(dir, "brief-2024-03-04-b-1.html"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "<h3>Today</h3>")
	assert.Contains(t, string(content), "1 of 12 messages selected, 1 critical.")
	assert.Contains(t, string(content), "82%")
}

func TestFileDeliverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewFileDelivery(t.TempDir(), zap.NewNop())
	assert.ErrorIs(t, d.Deliver(ctx, testBrief(), ""), context.Canceled)
}
