package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mrtongx0/donation-relay/internal/config"
	"github.com/mrtongx0/donation-relay/internal/models"
	"github.com/mrtongx0/donation-relay/internal/tier"
)

// Category is the kind of feed item being announced
type Category string

const (
	CategoryLive  Category = "Live"
	CategoryShort Category = "Short"
	CategoryVideo Category = "Video"
)

// FormatterConfig holds the colors and texts used to build messages
type FormatterConfig struct {
	DonationColor    int
	LeaderboardColor int
	LiveColor        int
	ShortColor       int
	VideoColor       int

	Footer             string
	Currency           string
	AnonymousName      string
	EmptyMessage       string
	AmountLabel        string
	MessageHeading     string
	LeaderboardTitle   string
	ChannelFieldName   string
	ReferenceFieldName string

	LiveTitle  string
	ShortTitle string
	VideoTitle string
}

// FormatterConfigFrom maps notification settings onto a FormatterConfig
func FormatterConfigFrom(c config.NotificationConfig) FormatterConfig {
	return FormatterConfig{
		DonationColor:      config.MustColor(c.DonationColor, 0xffe066),
		LeaderboardColor:   config.MustColor(c.LeaderboardColor, 0xf1c40f),
		LiveColor:          config.MustColor(c.LiveColor, 0xff0000),
		ShortColor:         config.MustColor(c.ShortColor, 0xff66cc),
		VideoColor:         config.MustColor(c.VideoColor, 0x3498db),
		Footer:             c.Footer,
		Currency:           c.Currency,
		AnonymousName:      c.AnonymousName,
		EmptyMessage:       c.EmptyMessage,
		AmountLabel:        c.AmountLabel,
		MessageHeading:     c.MessageHeading,
		LeaderboardTitle:   c.LeaderboardTitle,
		ChannelFieldName:   c.ChannelFieldName,
		ReferenceFieldName: c.ReferenceFieldName,
	}
}

// Formatter builds outbound message documents. It performs no I/O.
type Formatter struct {
	cfg FormatterConfig
	now func() time.Time
}

// NewFormatter creates a formatter, filling in texts left empty
func NewFormatter(cfg FormatterConfig) *Formatter {
	if cfg.AnonymousName == "" {
		cfg.AnonymousName = "Anonymous Supporter"
	}
	if cfg.EmptyMessage == "" {
		cfg.EmptyMessage = "-"
	}
	if cfg.AmountLabel == "" {
		cfg.AmountLabel = "Donated"
	}
	if cfg.MessageHeading == "" {
		cfg.MessageHeading = "💬 **Message:**"
	}
	if cfg.LeaderboardTitle == "" {
		cfg.LeaderboardTitle = "🏆 Top supporters this week"
	}
	if cfg.ChannelFieldName == "" {
		cfg.ChannelFieldName = "Payment channel"
	}
	if cfg.ReferenceFieldName == "" {
		cfg.ReferenceFieldName = "Reference"
	}
	if cfg.LiveTitle == "" {
		cfg.LiveTitle = "🔴 Live now!"
	}
	if cfg.ShortTitle == "" {
		cfg.ShortTitle = "📱 New Short!"
	}
	if cfg.VideoTitle == "" {
		cfg.VideoTitle = "🎬 New video!"
	}
	return &Formatter{cfg: cfg, now: time.Now}
}

// WithClock returns a copy of f that reads the current time from now
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	clone := *f
	clone.now = now
	return &clone
}

// DonationNotice builds the message announcing a single donation
func (f *Formatter) DonationNotice(event models.DonationEvent, t tier.Tier) *models.Message {
	name := strings.TrimSpace(event.DonatorName)
	if name == "" {
		name = f.cfg.AnonymousName
	}
	message := strings.TrimSpace(event.DonateMessage)
	if message == "" {
		message = f.cfg.EmptyMessage
	}

	var body strings.Builder
	fmt.Fprintf(&body, "✨ __**%s**__✨\n\n", name)
	fmt.Fprintf(&body, "%s **%s** 💖\n\n", f.cfg.AmountLabel, f.formatAmount(tier.Normalize(event.Amount)))
	fmt.Fprintf(&body, "%s\n> %s", f.cfg.MessageHeading, message)

	embed := models.Embed{
		Title:       t.Title,
		Description: body.String(),
		Color:       f.cfg.DonationColor,
		Timestamp:   f.timestamp(event.Time),
		Footer:      f.footer(),
	}
	if t.ImageURL != "" {
		embed.Image = &models.EmbedImage{URL: t.ImageURL}
	}
	if event.ChannelName != "" {
		embed.Fields = append(embed.Fields, models.EmbedField{Name: f.cfg.ChannelFieldName, Value: event.ChannelName, Inline: true})
	}
	if event.ReferenceNo != "" {
		embed.Fields = append(embed.Fields, models.EmbedField{Name: f.cfg.ReferenceFieldName, Value: event.ReferenceNo, Inline: true})
	}

	return &models.Message{Embeds: []models.Embed{embed}}
}

// LeaderboardNotice builds the ranked donor list. It returns nil when there
// is nobody to rank, which tells the caller to skip sending.
func (f *Formatter) LeaderboardNotice(entries []models.LeaderboardEntry) *models.Message {
	if len(entries) == 0 {
		return nil
	}

	lines := make([]string, 0, len(entries))
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf("#%d — %s — %s", i+1, entry.Name, f.formatAmount(entry.TotalAmount)))
	}

	return &models.Message{Embeds: []models.Embed{{
		Title:       f.cfg.LeaderboardTitle,
		Description: strings.Join(lines, "\n"),
		Color:       f.cfg.LeaderboardColor,
		Timestamp:   models.FormatTimestamp(f.now()),
		Footer:      f.footer(),
	}}}
}

// FeedNotice builds the announcement for a new feed item
func (f *Formatter) FeedNotice(item models.FeedItem) *models.Message {
	category := Classify(item)

	title, color := f.cfg.VideoTitle, f.cfg.VideoColor
	switch category {
	case CategoryLive:
		title, color = f.cfg.LiveTitle, f.cfg.LiveColor
	case CategoryShort:
		title, color = f.cfg.ShortTitle, f.cfg.ShortColor
	}

	published := item.PublishedAt
	if published.IsZero() {
		published = f.now()
	}

	embed := models.Embed{
		Title:       title,
		Description: fmt.Sprintf("**[%s](%s)**\n%s", item.Title, item.Link, item.Link),
		URL:         item.Link,
		Color:       color,
		Timestamp:   models.FormatTimestamp(published),
	}
	if item.ThumbnailURL != "" {
		embed.Image = &models.EmbedImage{URL: item.ThumbnailURL}
	}

	return &models.Message{Embeds: []models.Embed{embed}}
}

// Classify sorts a feed item into Live, Short or Video. A live title wins
// over a shorts link.
func Classify(item models.FeedItem) Category {
	switch {
	case strings.Contains(strings.ToLower(item.Title), "live"):
		return CategoryLive
	case strings.Contains(item.Link, "shorts"):
		return CategoryShort
	default:
		return CategoryVideo
	}
}

func (f *Formatter) formatAmount(amount float64) string {
	formatted := humanize.Commaf(amount)
	if f.cfg.Currency == "" {
		return formatted
	}
	return formatted + " " + f.cfg.Currency
}

func (f *Formatter) timestamp(raw string) string {
	if t, ok := models.ParseTimestamp(raw); ok {
		return models.FormatTimestamp(t)
	}
	return models.FormatTimestamp(f.now())
}

func (f *Formatter) footer() *models.EmbedFooter {
	if f.cfg.Footer == "" {
		return nil
	}
	return &models.EmbedFooter{Text: f.cfg.Footer}
}
