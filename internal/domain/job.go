package domain

import "time"

// QueueJob is a unit of asynchronous work. Status transitions are owned by the
// queue backend.
type QueueJob struct {
	ID           string     `db:"id" json:"task_id"`
	Queue        string     `db:"queue" json:"queue"`
	TaskName     string     `db:"task_name" json:"task_name"`
	Args         JSONMap    `db:"args" json:"args"`
	Status       JobStatus  `db:"status" json:"status"`
	Result       RawJSON    `db:"result" json:"result,omitempty"`
	Error        string     `db:"error" json:"error,omitempty"`
	Attempts     int        `db:"attempts" json:"attempts"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	EnqueuedAt   *time.Time `db:"enqueued_at" json:"enqueued_at,omitempty"`
	ScheduledFor *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	EndedAt      *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// TaskResult is returned to callers when a job is submitted.
type TaskResult struct {
	TaskID   string         `json:"task_id"`
	Status   JobStatus      `json:"status"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// JobStatusPayload is the polling view of a job.
type JobStatusPayload struct {
	TaskID    string     `json:"task_id"`
	Status    JobStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Result    RawJSON    `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// StatusPayload builds the polling view of the job.
func (j *QueueJob) StatusPayload() JobStatusPayload {
	p := JobStatusPayload{
		TaskID:    j.ID,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
		StartedAt: j.StartedAt,
		EndedAt:   j.EndedAt,
	}
	switch j.Status {
	case JobStatusCompleted:
		p.Result = j.Result
	case JobStatusFailed:
		p.Error = j.Error
		if p.Error == "" {
			p.Error = "job failed"
		}
	}
	return p
}
