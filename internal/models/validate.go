package models

import (
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError reports a malformed schedule definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidReportType(t ReportType) bool {
	validTypes := map[ReportType]bool{
		ReportTypeAssetInventory:    true,
		ReportTypeLicenseCompliance: true,
		ReportTypeAssignment:        true,
	}
	return validTypes[t]
}

// Validate checks the definition and the outcome fields of a schedule.
func (s *ReportSchedule) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}

	if !IsValidReportType(s.ReportType) {
		return &ValidationError{Field: "report_type", Reason: fmt.Sprintf("unknown report type %q", s.ReportType)}
	}

	if len(s.Recipients) == 0 {
		return &ValidationError{Field: "recipients", Reason: "at least one recipient is required"}
	}
	for _, r := range s.Recipients {
		if !isValidAddress(r) {
			return &ValidationError{Field: "recipients", Reason: fmt.Sprintf("malformed email address %q", r)}
		}
	}

	if _, err := s.Recurrence(); err != nil {
		return err
	}

	switch s.LastStatus {
	case "", RunStatusPending, RunStatusSuccess:
		if s.LastError != "" {
			return &ValidationError{Field: "last_error", Reason: "only allowed when last_status is failed"}
		}
	case RunStatusFailed:
		if s.LastError == "" {
			return &ValidationError{Field: "last_error", Reason: "required when last_status is failed"}
		}
	default:
		return &ValidationError{Field: "last_status", Reason: fmt.Sprintf("unknown status %q", s.LastStatus)}
	}

	return nil
}

// isValidAddress accepts bare addresses only ("ops@example.com", not "Ops <ops@example.com>").
func isValidAddress(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	return parsed.Address == addr && strings.Contains(addr[strings.LastIndex(addr, "@")+1:], ".")
}
