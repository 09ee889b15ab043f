package model

import (
	"fmt"
	"strings"
	"time"

	"future-self-ai/internal/domain"
)

type JobStatus string

const (
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusDeleted    JobStatus = "DELETED"
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusDeleted}

// ParseJobStatus accepts any casing and rejects unknown values.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case JobStatusProcessing:
		return JobStatusProcessing, nil
	case JobStatusCompleted:
		return JobStatusCompleted, nil
	case JobStatusFailed:
		return JobStatusFailed, nil
	case JobStatusDeleted:
		return JobStatusDeleted, nil
	default:
		return "", fmt.Errorf("%w: unknown job status %q", domain.ErrInvalidArgument, s)
	}
}

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusDeleted:
		return true
	case JobStatusProcessing:
		return false
	default:
		return false
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
// DELETED is only reachable from a finished job; an in-flight generation
// still owns a PROCESSING job.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		return next == JobStatusDeleted
	case JobStatusDeleted:
		return false
	default:
		return false
	}
}

// Job is one tracked portrait generation request.
type Job struct {
	ID                    string            `json:"jobId"`
	Status                JobStatus         `json:"status"`
	Profession            string            `json:"profession"`
	TargetAge             int               `json:"targetAge"`
	OriginalFilename      string            `json:"originalFilename"`
	ImageURL              string            `json:"imageUrl,omitempty"`
	GeneratedFilename     string            `json:"generatedFilename,omitempty"`
	ErrorMessage          string            `json:"errorMessage,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	StartedAt             time.Time         `json:"startedAt"`
	CompletedAt           *time.Time        `json:"completedAt,omitempty"`
	ProcessingTimeSeconds *int64            `json:"processingTimeSeconds,omitempty"`
	Metadata              map[string]string `json:"metadata"`
}

// NewJob builds a PROCESSING job. Work starts right away, so StartedAt equals CreatedAt.
func NewJob(id, profession string, targetAge int, originalFilename string, now time.Time) (*Job, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(profession) == "" || targetAge <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Job{
		ID:               id,
		Status:           JobStatusProcessing,
		Profession:       profession,
		TargetAge:        targetAge,
		OriginalFilename: originalFilename,
		CreatedAt:        now,
		StartedAt:        now,
		Metadata:         map[string]string{},
	}, nil
}

// Complete moves a PROCESSING job to COMPLETED.
func (j *Job) Complete(imageURL, generatedFilename string, extra map[string]string, now time.Time) error {
	if err := j.checkTransition(JobStatusCompleted); err != nil {
		return err
	}
	j.Status = JobStatusCompleted
	j.ImageURL = imageURL
	j.GeneratedFilename = generatedFilename
	j.finish(now)
	j.MergeMetadata(extra)
	return nil
}

// Fail moves a PROCESSING job to FAILED.
func (j *Job) Fail(errorMessage string, now time.Time) error {
	if err := j.checkTransition(JobStatusFailed); err != nil {
		return err
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = errorMessage
	j.finish(now)
	return nil
}

// MarkDeleted records the DELETED terminal state. CompletedAt and the processing
// time keep the values set when the job finished.
func (j *Job) MarkDeleted(extra map[string]string, now time.Time) error {
	if err := j.checkTransition(JobStatusDeleted); err != nil {
		return err
	}
	j.Status = JobStatusDeleted
	if j.CompletedAt == nil {
		j.finish(now)
	}
	j.MergeMetadata(extra)
	return nil
}

func (j *Job) checkTransition(next JobStatus) error {
	if j.Status.CanTransitionTo(next) {
		return nil
	}
	if j.Status.IsTerminal() && next != JobStatusDeleted {
		return fmt.Errorf("%w: job %s is %s", domain.ErrJobFinalized, j.ID, j.Status)
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, next)
}

func (j *Job) finish(now time.Time) {
	completed := now
	j.CompletedAt = &completed
	if j.ProcessingTimeSeconds == nil && !j.StartedAt.IsZero() {
		secs := int64(completed.Sub(j.StartedAt) / time.Second)
		if secs < 0 {
			secs = 0
		}
		j.ProcessingTimeSeconds = &secs
	}
}

// MergeMetadata adds extra on top of the existing metadata. Keys are never removed.
func (j *Job) MergeMetadata(extra map[string]string) {
	if len(extra) == 0 {
		return
	}
	if j.Metadata == nil {
		j.Metadata = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		j.Metadata[k] = v
	}
}

// ExpiredFromCache reports whether a finished job has outlived ttl since completion.
// PROCESSING jobs never expire.
func (j *Job) ExpiredFromCache(now time.Time, ttl time.Duration) bool {
	if !j.Status.IsTerminal() || j.CompletedAt == nil {
		return false
	}
	return now.Sub(*j.CompletedAt) > ttl
}

// Clone returns a deep copy so cached values are never shared with callers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.ProcessingTimeSeconds != nil {
		s := *j.ProcessingTimeSeconds
		cp.ProcessingTimeSeconds = &s
	}
	cp.Metadata = make(map[string]string, len(j.Metadata))
	for k, v := range j.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

// JobStatistics is the aggregate view over every stored job.
type JobStatistics struct {
	TotalJobs                    int64             `json:"totalJobs"`
	CompletedJobs                int64             `json:"completedJobs"`
	FailedJobs                   int64             `json:"failedJobs"`
	ProcessingJobs               int64             `json:"processingJobs"`
	AverageProcessingTimeSeconds *float64          `json:"averageProcessingTimeSeconds,omitempty"`
	ProfessionStats              []ProfessionCount `json:"professionStats"`
}

type ProfessionCount struct {
	Profession string `json:"profession"`
	Count      int64  `json:"count"`
}
