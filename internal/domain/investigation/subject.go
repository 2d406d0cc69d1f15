package investigation

import (
	"strings"
	"time"

	"github.com/veriscreen/screening-backend/internal/domain/errors"
)

// SubjectIdentifiers is the plaintext input identifying the person under
// investigation. It lives only in request memory; persistence goes through
// the encrypted entity identifier store.
type SubjectIdentifiers struct {
	FullName  string     `json:"full_name" validate:"required"`
	DOB       *time.Time `json:"dob,omitempty"`
	SSN       string     `json:"ssn,omitempty"`
	Addresses []string   `json:"addresses,omitempty"`
	Aliases   []string   `json:"aliases,omitempty"`
	Email     string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string     `json:"phone,omitempty"`
}

// Validate applies the minimal identity requirements for opening a screening.
func (s *SubjectIdentifiers) Validate() error {
	if strings.TrimSpace(s.FullName) == "" {
		return errors.NewValidationError("missing_subject_name", "subject full name is required")
	}
	if s.SSN != "" && len(normalizeSSN(s.SSN)) != 9 {
		return errors.NewValidationError("malformed_ssn", "SSN must contain nine digits")
	}
	return nil
}

func normalizeSSN(ssn string) string {
	var b strings.Builder
	for _, r := range ssn {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizedSSN returns the digits-only SSN, or "" when absent.
func (s *SubjectIdentifiers) NormalizedSSN() string {
	if s.SSN == "" {
		return ""
	}
	return normalizeSSN(s.SSN)
}
