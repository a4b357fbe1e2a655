// Package schemas embeds the JSON Schemas of documents the workflow persists
// or loads.
package schemas

import "embed"

// FS holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

// Schema file names
const (
	StageFeedback     = "stage_feedback.schema.json"
	FeedbackTemplates = "feedback_templates.schema.json"
)
