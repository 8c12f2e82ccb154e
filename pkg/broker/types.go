// Package broker implements the Request Broker: per-session command
// dispatch (schedule, open, status, log/err/job, keepalive, suspend,
// resume) and the opaque-command forwarding protocol to a session's
// allocated backend.
package broker

import "github.com/stacklok/rrbroker/pkg/session"

// CookieName is the HTTP cookie identifying a session on every request
// after creation, per spec.md §6 ("Cookie. HBP=<uuid> identifies the
// session on every subsequent call.").
const CookieName = "HBP"

// ScheduleRequest is the JSON body accepted by the schedule command.
type ScheduleRequest struct {
	Params             string `json:"params"`
	Environment        string `json:"environment"`
	ReservationName    string `json:"reservation_name"`
	QueueName          string `json:"queue_name"`
	ExclusiveAllocation bool  `json:"exclusive_allocation"`
}

// StatusResponse is returned by the status command.
type StatusResponse struct {
	Session     *session.Session `json:"session"`
	Code        int              `json:"code"`
	Description string           `json:"description"`
	Hostname    string           `json:"hostname"`
	Port        int              `json:"port"`
}

// ContentsResponse wraps log/err/job command output.
type ContentsResponse struct {
	Contents string `json:"contents"`
}
