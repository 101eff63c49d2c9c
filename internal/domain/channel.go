package domain

// Channel is a named chat routing destination
type Channel struct {
	Name       string         `json:"name"`
	Permission string         `json:"permission,omitempty"`
	BridgeID   string         `json:"bridge_id,omitempty"`
	Broadcast  bool           `json:"broadcast"`
	Aliases    []string       `json:"aliases,omitempty"`
	Formats    ChannelFormats `json:"formats"`
	Dynamic    bool           `json:"dynamic,omitempty"` // contributed by a roster
}

// ChannelFormats holds the message templates of a channel
type ChannelFormats struct {
	Chat         string `json:"chat"`
	BridgeToChat string `json:"bridge_to_chat,omitempty"`
	ChatToBridge string `json:"chat_to_bridge,omitempty"`
}

// ChannelInfo is the API view of a channel
type ChannelInfo struct {
	Channel
	Disabled    bool `json:"disabled"`
	Subscribers int  `json:"subscribers"`
}

// Delivery is the outcome of routing one message
type Delivery struct {
	Channel    string   `json:"channel"`
	Text       string   `json:"text"`
	Recipients []string `json:"recipients"`
	Everyone   bool     `json:"everyone,omitempty"`
	SpyText    string   `json:"spy_text,omitempty"`
	Spies      []string `json:"spies,omitempty"`
	Mentioned  []string `json:"mentioned,omitempty"`
	BridgeID   string   `json:"bridge_id,omitempty"`
	BridgeText string   `json:"bridge_text,omitempty"`
}

// BridgeMessage is a message received from the external chat bridge
type BridgeMessage struct {
	ChannelID   string   `json:"channel_id"`
	Author      string   `json:"author"`
	Text        string   `json:"text"`
	ReplyTo     string   `json:"reply_to,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}
