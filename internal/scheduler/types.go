// Package scheduler holds the periodic jobs run by cmd/maintenance: the daily
// unread-message digest and retention purges for sessions, email
// verification links and login audit rows.
//
// Each job is triggered by a MaintenancePayload from an EventBridge rule.
package scheduler

import "time"

// TaskType identifies which job a maintenance invocation runs.
type TaskType string

const (
	TaskMessageDigest       TaskType = "message_digest"
	TaskPurgeSessions       TaskType = "purge_sessions"
	TaskPurgeSecurityEvents TaskType = "purge_security_events"
	TaskPurgeVerifications  TaskType = "purge_verification_tokens"
)

// MaintenancePayload is the event body sent by the schedule rules:
//
//	{"task": "message_digest", "reference_time": "2026-03-01T08:00:00Z"}
type MaintenancePayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual reruns and backfills.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
