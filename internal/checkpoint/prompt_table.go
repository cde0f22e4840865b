// internal/checkpoint/prompt_table.go
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
)

// PromptTask is one tuned task in a prompt table: the virtual tokens are
// prepended to every request that selects the task by id.
type PromptTask struct {
	TaskID        string  `json:"task_id"`
	VirtualTokens []int32 `json:"virtual_tokens"`
}

// PromptTable is a prompt-tuning artifact saved alongside a checkpoint.
type PromptTable struct {
	Tasks []PromptTask `json:"tasks"`
}

// LoadPromptTable reads a prompt table file. A missing file surfaces as an
// error wrapping fs.ErrNotExist so callers can treat it as "not tuned".
func LoadPromptTable(path string) (*PromptTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read prompt table %q: %w", path, err)
	}

	var table PromptTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("could not parse prompt table %q: %w", path, err)
	}

	if len(table.Tasks) == 0 {
		return nil, fmt.Errorf("prompt table %q holds no tasks", path)
	}
	seen := make(map[string]bool, len(table.Tasks))
	for _, task := range table.Tasks {
		if task.TaskID == "" {
			return nil, fmt.Errorf("prompt table %q holds a task with an empty id", path)
		}
		if seen[task.TaskID] {
			return nil, fmt.Errorf("prompt table %q repeats task id %q", path, task.TaskID)
		}
		seen[task.TaskID] = true
	}
	return &table, nil
}

// Task returns the task registered under an id.
func (pt *PromptTable) Task(id string) (PromptTask, bool) {
	for _, task := range pt.Tasks {
		if task.TaskID == id {
			return task, true
		}
	}
	return PromptTask{}, false
}

// TotalVirtualTokens counts the virtual tokens across all tasks. The export
// step checks this against the configured table-size limit.
func (pt *PromptTable) TotalVirtualTokens() int {
	total := 0
	for _, task := range pt.Tasks {
		total += len(task.VirtualTokens)
	}
	return total
}
