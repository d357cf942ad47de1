// Package schemas embeds the JSON Schemas for payloads exchanged with the tailoring service.
package schemas

import "embed"

// FS holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

// Schema file names
const (
	TailorResponse = "tailor_response.schema.json"
	ReviewResponse = "review_response.schema.json"
	LearnedFields  = "learned_fields.schema.json"
	HealthResponse = "health_response.schema.json"
)
