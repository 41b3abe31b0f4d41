// Package botframework exposes the dialogue engine as a Bot-Framework-style
// webhook: channel deliveries arrive on /api/messages, replies are posted
// back to the channel's service URL with a client-credentials bearer token.
package botframework

// Activity kinds the bot reads and writes.
const (
	activityMessage = "message"
	activityTyping  = "typing"
)

// ChannelAccount identifies one party of the conversation.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies the conversation thread.
type ConversationAccount struct {
	ID string `json:"id"`
}

// Activity is the Bot-Framework envelope, limited to the fields this bot
// uses. Replies swap From and Recipient and thread on ReplyToID.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Timestamp    string              `json:"timestamp,omitempty"`
	Text         string              `json:"text,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
}
