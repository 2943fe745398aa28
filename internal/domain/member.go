// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"time"
)

// MemberStatus is the enrollment status of a scheme member.
type MemberStatus string

const (
	MemberActive     MemberStatus = "active"
	MemberSuspended  MemberStatus = "suspended"
	MemberTerminated MemberStatus = "terminated"
)

// Member represents a scheme member whose claims are adjudicated.
// Members are owned by an external enrollment system; the engine only reads.
type Member struct {
	ID       string       `json:"id"`
	TenantID string       `json:"tenantId"`
	SchemeID string       `json:"schemeId"`
	Status   MemberStatus `json:"status"`

	// EnrollmentDate is when cover started. Nil means the member was never
	// properly enrolled, which fails eligibility.
	EnrollmentDate *time.Time `json:"enrollmentDate,omitempty"`

	// BenefitYearStart overrides the enrollment date as the anchor for
	// BENEFIT_YEAR period calculations.
	BenefitYearStart *time.Time `json:"benefitYearStart,omitempty"`

	BirthDate *time.Time `json:"birthDate,omitempty"`

	// Dependent members are covered under a principal member's scheme.
	Dependent         bool   `json:"dependent"`
	PrincipalMemberID string `json:"principalMemberId,omitempty"`
}

// AgeAt returns the member's age in whole years at the given instant.
// The second return is false when the birth date is unknown.
func (m *Member) AgeAt(at time.Time) (int, bool) {
	if m.BirthDate == nil {
		return 0, false
	}
	b := *m.BirthDate
	age := at.Year() - b.Year()
	// Birthday not yet reached this year.
	if at.Month() < b.Month() || (at.Month() == b.Month() && at.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age, true
}
