// internal/accuracy/types.go
package accuracy

// Record is one next-word prediction case from the test data: the text
// leading up to the answer and the word the model is expected to produce.
type Record struct {
	Text     string `json:"text_before_last_word"`
	LastWord string `json:"last_word"`
}

// TestSet holds the loaded prediction cases.
type TestSet struct {
	Records []Record

	path string
}

// Path returns the file the test set was loaded from.
func (s *TestSet) Path() string {
	return s.path
}

// Detail records a single prediction and how it compared.
type Detail struct {
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Index     int    `json:"index"`
	Prompt    string `json:"prompt"`
	Expected  string `json:"expected"`
	Response  string `json:"response"`
	Predicted string `json:"predicted"`
	Exact     bool   `json:"exact"`
	Relaxed   bool   `json:"relaxed"`
	GPUs      int    `json:"gpus,omitempty"`
}

// Report summarizes an evaluation run. Relaxed accuracy decides the verdict:
// a run passes when it reaches the threshold.
type Report struct {
	Model           string  `json:"model"`
	Timestamp       string  `json:"timestamp"`
	Total           int     `json:"total"`
	ExactMatches    int     `json:"exactMatches"`
	RelaxedMatches  int     `json:"relaxedMatches"`
	ExactAccuracy   float64 `json:"exactAccuracy"`
	RelaxedAccuracy float64 `json:"relaxedAccuracy"`
	Threshold       float64 `json:"threshold"`
	Passed          bool    `json:"passed"`
	GPUs            int     `json:"gpus,omitempty"`

	Details []Detail `json:"-"`
}
