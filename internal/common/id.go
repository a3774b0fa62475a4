package common

import (
	"github.com/google/uuid"
)

// NewReportID generates a unique report ID with the "rpt_" prefix
// Format: rpt_<uuid>
func NewReportID() string {
	return "rpt_" + uuid.New().String()
}

// NewRequestID generates an HTTP request ID with the "req_" prefix
func NewRequestID() string {
	return "req_" + uuid.New().String()
}
