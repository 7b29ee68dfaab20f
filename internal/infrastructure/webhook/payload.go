package webhook

import (
	"fmt"
	"time"

	"ColaMonitor/internal/domain"
)

// Payload is the JSON body accepted by the chat webhook.
type Payload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Embed is one rich card.
type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"url,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
	Image       *Image  `json:"image,omitempty"`
}

// Field is a name/value pair shown on a card.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the small text under a card.
type Footer struct {
	Text string `json:"text"`
}

// Image points a card at a picture, an attachment:// name for uploaded files.
type Image struct {
	URL string `json:"url"`
}

const notAvailable = "N/A"

// HeaderContent announces how many new labels follow.
func HeaderContent(count int) string {
	noun := "Label"
	if count > 1 {
		noun = "Labels"
	}
	return fmt.Sprintf("**%d New Whiskey %s Approved!**", count, noun)
}

func (n *Notifier) card(label domain.Label, now time.Time) Embed {
	embed := Embed{
		Title: label.DisplayTitle(),
		URL:   n.detailURL(label.TTBID),
		Color: n.cfg.Color,
		Fields: []Field{
			{Name: "Brand", Value: firstNonEmpty(label.BrandName), Inline: true},
			{Name: "Type", Value: firstNonEmpty(label.ClassTypeDesc, label.ClassType), Inline: true},
			{Name: "Origin", Value: firstNonEmpty(label.OriginDesc, label.Origin), Inline: true},
			{Name: "Approved", Value: firstNonEmpty(label.CompletedDate), Inline: true},
			{Name: "TTB ID", Value: label.TTBID, Inline: true},
		},
		Timestamp: now.UTC().Format(domain.TimestampLayout),
		Footer:    &Footer{Text: n.cfg.Footer},
	}
	if label.HasImage() {
		embed.Image = &Image{URL: "attachment://" + label.ImageFilename}
	}
	return embed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return notAvailable
}

// Partition splits labels by whether an image is attached, keeping order.
func Partition(labels []domain.Label) (withImage, withoutImage []domain.Label) {
	for _, label := range labels {
		if label.HasImage() {
			withImage = append(withImage, label)
		} else {
			withoutImage = append(withoutImage, label)
		}
	}
	return withImage, withoutImage
}

// Chunk groups labels into batches of at most size, keeping order.
func Chunk(labels []domain.Label, size int) []domain.Batch {
	if size < 1 {
		size = 1
	}
	batches := make([]domain.Batch, 0, (len(labels)+size-1)/size)
	for start := 0; start < len(labels); start += size {
		end := min(start+size, len(labels))
		batches = append(batches, domain.Batch(labels[start:end]))
	}
	return batches
}
