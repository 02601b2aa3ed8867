package models

// EnqueueRequest is the body of POST /api/downloads.
//
// ResourceID may also be a full watch URL.
type EnqueueRequest struct {
	ResourceID string `json:"resourceId"`
	FileName   string `json:"fileName,omitempty"`
}

// EnqueueResponse carries the id assigned to an accepted task.
type EnqueueResponse struct {
	TaskID     string `json:"taskId"`
	ResourceID string `json:"resourceId"`
}

// QueueDepth reports running and waiting task counts.
type QueueDepth struct {
	Running int `json:"running"`
	Waiting int `json:"waiting"`
	Total   int `json:"total"`
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
