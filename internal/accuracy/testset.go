// internal/accuracy/testset.go
package accuracy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// testSetSchema is the shape the test data file must have: a non-empty
// array of context/last-word pairs.
const testSetSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["text_before_last_word", "last_word"],
		"properties": {
			"text_before_last_word": {"type": "string", "minLength": 1},
			"last_word": {"type": "string", "minLength": 1}
		}
	}
}`

// LoadTestSet reads and validates a test data file.
func LoadTestSet(path string) (*TestSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading test data: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(testSetSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validation error for %s: %w", path, err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("test data %s failed validation: %s", path, strings.Join(details, "; "))
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("error parsing test data: %w", err)
	}

	return &TestSet{Records: records, path: path}, nil
}
