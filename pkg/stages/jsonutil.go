package stages

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in completion")

// decodeCompletion unmarshals the first JSON object found in a model
// completion. Models often wrap JSON in markdown fences or add a sentence
// around it; both are tolerated.
func decodeCompletion(text string, dst any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(text[start:end+1]), dst)
}
