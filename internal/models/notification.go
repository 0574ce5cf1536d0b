package models

// NotificationKind identifies which notice a message carries
type NotificationKind string

const (
	NotificationKindDonation    NotificationKind = "donation"
	NotificationKindLeaderboard NotificationKind = "leaderboard"
	NotificationKindFeed        NotificationKind = "feed"
	NotificationKindTest        NotificationKind = "test"
)

// Message is the document posted to a chat webhook
type Message struct {
	Embeds []Embed `json:"embeds"`
}

// Embed is a single rich block of a Message
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedFooter is the small text under an embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedImage references an image by URL
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedField is an inline name/value pair
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
