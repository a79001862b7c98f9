package transcription

import (
	"encoding/json"
	"strings"
)

// ExtractText pulls usable text out of a succeeded prediction. Model
// versions disagree about the output shape: some return a bare string, some
// an object with a "transcription" field, some an object with "text". As a
// last resort the raw output is returned serialized, so the caller always
// gets something usable.
func ExtractText(output json.RawMessage) string {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var asString string
	if err := json.Unmarshal(output, &asString); err == nil {
		return asString
	}

	var asObject struct {
		Transcription *string `json:"transcription"`
		Text          *string `json:"text"`
	}
	if err := json.Unmarshal(output, &asObject); err == nil {
		if asObject.Transcription != nil {
			return *asObject.Transcription
		}
		if asObject.Text != nil {
			return *asObject.Text
		}
	}

	return trimmed
}
