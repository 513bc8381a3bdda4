package parsers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/bourkey/revalidate-webhook/internal/models"
	go_json "github.com/goccy/go-json"
)

// Canonical payload fields
const (
	FieldType        = "_type"
	FieldID          = "_id"
	FieldSlug        = "slug"
	FieldSlugCurrent = "current" // nested under FieldSlug
)

// Vendor headers sent with every delivery
const (
	HeaderOperation      = "sanity-operation"
	HeaderDocumentID     = "sanity-document-id"
	HeaderDataset        = "sanity-dataset"
	HeaderProjectID      = "sanity-project-id"
	HeaderIdempotencyKey = "idempotency-key"
)

var (
	// ErrInvalidJSON is returned when the body is not valid JSON
	ErrInvalidJSON = errors.New("invalid JSON payload")

	// ErrMissingType is returned when the payload has no document type
	ErrMissingType = errors.New("payload is missing required field " + FieldType)
)

// ParseChangeEvent extracts a change event from a raw webhook body.
// The discriminator is read only from _type and the slug only from
// slug.current; other payload shapes are not interpreted.
func ParseChangeEvent(body []byte) (*models.ChangeEvent, error) {
	var raw any
	if err := go_json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMissingType)
	}

	docType := stringField(doc, FieldType)
	if strings.TrimSpace(docType) == "" {
		return nil, ErrMissingType
	}

	event := &models.ChangeEvent{
		Type:         docType,
		DocumentID:   stringField(doc, FieldID),
		ReceivedKeys: sortedKeys(doc),
	}

	if slug, ok := doc[FieldSlug].(map[string]any); ok {
		event.Slug = strings.TrimSpace(stringField(slug, FieldSlugCurrent))
	}

	return event, nil
}

// ParseWebhookMeta reads the informational vendor headers
func ParseWebhookMeta(h http.Header) models.WebhookMeta {
	return models.WebhookMeta{
		Operation:      h.Get(HeaderOperation),
		DocumentID:     h.Get(HeaderDocumentID),
		Dataset:        h.Get(HeaderDataset),
		ProjectID:      h.Get(HeaderProjectID),
		IdempotencyKey: h.Get(HeaderIdempotencyKey),
	}
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func sortedKeys(doc map[string]any) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
