package dispatch

// TaskMessage is the queue envelope carrying one step from the stage
// executor to a worker.
type TaskMessage struct {
	SubTaskID    string `json:"sub_task_id"`
	ParentTaskID string `json:"parent_task_id"`
	Role         string `json:"target_role"`
	Tool         string `json:"tool_name"`
	Input        any    `json:"input"`
	StepID       string `json:"stepId"`
	Narrative    string `json:"narrative"`
}

// ResultMessage travels back from a worker to the awaiting stage executor.
type ResultMessage struct {
	SubTaskID    string `json:"sub_task_id"`
	ParentTaskID string `json:"parent_task_id"`
	WorkerRole   string `json:"worker_role"`
	Status       string `json:"status"`
	ResultData   any    `json:"result_data"`
	ErrorDetails string `json:"error_details,omitempty"`
}
