// Package notify delivers validation outcomes to a 企业微信 robot webhook.
// Delivery failures are reported to the caller but never change the computed
// validation outcome.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/stonexiaolei/tuzhan-data/pkg/config"
	"github.com/stonexiaolei/tuzhan-data/pkg/httputil"
	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// Notifier sends messages to the configured webhook, spacing consecutive
// deliveries by the configured minimum interval to stay under the robot's
// rate limit
type Notifier struct {
	cfg     config.WeChatConfig
	client  *httputil.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// New creates a Notifier from config
func New(cfg config.WeChatConfig, client *httputil.Client, log *logger.Logger) *Notifier {
	return &Notifier{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		log:     log,
	}
}

// Enabled reports whether a webhook is configured
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled()
}

// Send delivers one message. Without a configured webhook it is a logged
// no-op. The robot answers HTTP 200 with a JSON body; anything but
// errcode 0 counts as a failure.
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	if !n.Enabled() {
		n.log.Warn("未配置企业微信机器人，跳过通知发送")
		return nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	resp, err := n.client.PostJSON(ctx, n.cfg.Webhook, msg)
	if err != nil {
		return fmt.Errorf("post wechat webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wechat webhook returned status %d", resp.StatusCode)
	}

	var body struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode wechat webhook response: %w", err)
	}
	if body.ErrCode != 0 {
		return fmt.Errorf("wechat webhook errcode %d: %s", body.ErrCode, body.ErrMsg)
	}

	n.log.Info("企业微信通知发送成功")
	return nil
}
