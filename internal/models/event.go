package models

// ChangeEvent represents a parsed content-change notification from the CMS
type ChangeEvent struct {
	// Document type discriminator (_type)
	Type string

	// Slug identifier (slug.current), empty when absent
	Slug string

	// Document ID (_id), informational only
	DocumentID string

	// Top-level keys present in the payload, sorted
	ReceivedKeys []string
}

// HasSlug returns true if the event carries a slug
func (e ChangeEvent) HasSlug() bool {
	return e.Slug != ""
}

// WebhookMeta holds the vendor headers sent alongside a webhook delivery.
// None of these fields take part in authorization.
type WebhookMeta struct {
	Operation      string
	DocumentID     string
	Dataset        string
	ProjectID      string
	IdempotencyKey string
}
