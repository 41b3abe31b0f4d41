package botframework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const typingTimeout = 2 * time.Second

// Connector posts outgoing activities to the service URL carried by the
// incoming activity.
type Connector struct {
	tokens *TokenProvider
	client *http.Client
}

// NewConnector builds a connector authenticating with the given provider.
func NewConnector(tokens *TokenProvider) *Connector {
	return &Connector{
		tokens: tokens,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// ReplyText answers the incoming activity with text, threaded on the
// triggering message id.
func (c *Connector) ReplyText(ctx context.Context, incoming Activity, text string) error {
	return c.post(ctx, incoming, Activity{
		Type:         activityMessage,
		Text:         text,
		From:         incoming.Recipient,
		Recipient:    incoming.From,
		Conversation: incoming.Conversation,
		ReplyToID:    incoming.ID,
	})
}

// Typing flashes the channel's typing indicator. Bounded tightly so a slow
// channel cannot delay the turn.
func (c *Connector) Typing(ctx context.Context, incoming Activity) error {
	ctx, cancel := context.WithTimeout(ctx, typingTimeout)
	defer cancel()
	return c.post(ctx, incoming, Activity{
		Type:         activityTyping,
		From:         incoming.Recipient,
		Recipient:    incoming.From,
		Conversation: incoming.Conversation,
	})
}

func (c *Connector) post(ctx context.Context, incoming Activity, out Activity) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimRight(incoming.ServiceURL, "/"),
		url.PathEscape(incoming.Conversation.ID))

	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("activity post returned %d", resp.StatusCode)
	}
	return nil
}
