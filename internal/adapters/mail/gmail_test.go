package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func encodeBody(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestGmailConnectorFetchRecent(t *testing.T) {
	received := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	full := map[string]interface{}{
		"id":           "m1",
		"threadId":     "t1",
		"internalDate": "1709542800000",
		"payload": map[string]interface{}{
			"mimeType": "multipart/alternative",
			"headers": []map[string]string{
				{"name": "From", "value": "Jane Boss <boss@company.com>"},
				{"name": "Subject", "value": "Budget review"},
			},
			"parts": []map[string]interface{}{
				{"mimeType": "text/plain", "body": map[string]string{"data": encodeBody("Need sign-off today.")}},
				{"mimeType": "text/html", "body": map[string]string{"data": encodeBody("<p>ignored</p>")}},
			},
		},
	}

	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			query = r.URL.Query().Get("q")
			_, _ = w.Write([]byte(`{"messages":[{"id":"m1","threadId":"t1"},{"id":"gone","threadId":"t2"}]}`))
		case strings.HasSuffix(r.URL.Path, "/users/me/messages/m1"):
			assert.Equal(t, "full", r.URL.Query().Get("format"))
			require.NoError(t, json.NewEncoder(w).Encode(full))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
		}
	}))
	defer server.Close()

	svc, err := gmail.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	logger := zap.NewNop()
	c := NewGmailConnectorWithService(svc, "", 10, logger, utils.NewTextProcessor(logger))

	msgs, err := c.FetchRecent(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "after:"))

	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, "Jane Boss <boss@company.com>", msg.Sender)
	assert.Equal(t, "Budget review", msg.Subject)
	assert.Equal(t, "Need sign-off today.", msg.Preview)
	assert.True(t, received.Equal(msg.ReceivedAt))
}

func TestParseGmailBodyUnpadded(t *testing.T) {
	raw := rawMessage{}
	part := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("ab?"))},
	}
	require.NoError(t, parseGmailBody(part, &raw))
	assert.Equal(t, "ab?", raw.Plain)
}

func TestParseGmailMessageWithoutPayload(t *testing.T) {
	_, err := parseGmailMessage(&gmail.Message{Id: "x"})
	assert.Error(t, err)
}

func TestNewGmailConnectorRequiresCredentials(t *testing.T) {
	logger := zap.NewNop()
	_, err := NewGmailConnector(context.Background(), config.GmailConfig{}, 10, logger, utils.NewTextProcessor(logger))
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}
