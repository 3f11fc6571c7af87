// Package whatsapp delivers customer messages through the WAAPI WhatsApp
// gateway. Every company has its own WAAPI instance and token.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"servewell_backend/platform/config"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/phone"
)

// ErrInvalidRecipient is returned when the phone number cannot be addressed.
var ErrInvalidRecipient = errors.New("whatsapp: invalid recipient")

type Client struct {
	baseURL string
	region  string
	http    *http.Client
	log     *logger.Logger
}

type sendMessageRequest struct {
	ChatID      string `json:"chatId"`
	Message     string `json:"message"`
	PreviewLink bool   `json:"previewLink"`
}

func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetWhatsAppBaseURL(), "/"),
		region:  cfg.GetPhoneDefaultRegion(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Send posts text to phoneNumber through the given WAAPI instance.
func (c *Client) Send(ctx context.Context, instanceID, token, phoneNumber, text string) error {
	chatID := phone.ToWhatsAppChatID(phoneNumber, c.region)
	if chatID == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, phoneNumber)
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Message: text, PreviewLink: true})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/instances/%s/client/action/send-message", c.baseURL, url.PathEscape(instanceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp sent via waapi", "instance_id", instanceID, "chat_id", chatID)
	return nil
}
