package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/httputil"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

func testNotifier(t *testing.T, webhook string, minInterval time.Duration) *Notifier {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	client := httputil.New(log).DisableRetry()

	return New(config.WeChatConfig{
		Webhook:     webhook,
		MinInterval: minInterval,
	}, client, log)
}

func okHandler(received *[]Message) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		*received = append(*received, msg)
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}
}

func TestSend(t *testing.T) {
	var received []Message
	srv := httptest.NewServer(okHandler(&received))
	defer srv.Close()

	n := testNotifier(t, srv.URL, time.Millisecond)

	msg := Message{MsgType: "markdown", Markdown: Markdown{Content: "# hello"}}
	require.NoError(t, n.Send(context.Background(), msg))

	require.Len(t, received, 1)
	assert.Equal(t, "markdown", received[0].MsgType)
	assert.Equal(t, "# hello", received[0].Markdown.Content)
}

func TestSendErrcodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":93000,"errmsg":"invalid webhook url"}`))
	}))
	defer srv.Close()

	n := testNotifier(t, srv.URL, time.Millisecond)

	err := n.Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "93000")
}

func TestSendHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := testNotifier(t, srv.URL, time.Millisecond)

	err := n.Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSendWithoutWebhookIsNoop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := testNotifier(t, "", time.Millisecond)

	require.NoError(t, n.Send(context.Background(), Message{}))
	assert.False(t, n.Enabled())
	assert.Zero(t, calls.Load())
}

func TestEnabledFollowsConfig(t *testing.T) {
	assert.True(t, testNotifier(t, "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=k", time.Second).Enabled())
	assert.False(t, testNotifier(t, "", time.Second).Enabled())
}

func TestSendThrottlesConsecutiveDeliveries(t *testing.T) {
	var received []Message
	srv := httptest.NewServer(okHandler(&received))
	defer srv.Close()

	const interval = 80 * time.Millisecond
	n := testNotifier(t, srv.URL, interval)

	start := time.Now()
	require.NoError(t, n.Send(context.Background(), Message{}))
	require.NoError(t, n.Send(context.Background(), Message{}))
	require.NoError(t, n.Send(context.Background(), Message{}))
	elapsed := time.Since(start)

	// Three deliveries need at least two full intervals between them
	assert.GreaterOrEqual(t, elapsed, 2*interval)
	assert.Len(t, received, 3)
}
