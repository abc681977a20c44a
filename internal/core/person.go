package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindPerson  PersonKind = "person"
	KindCompany PersonKind = "company"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{6,20}$`)
)

type (
	PersonKind string

	// Person is a counterparty that debts can reference.
	Person struct {
		Record
		Name               string           `json:"name"`
		Phone              string           `json:"phone"`
		Email              string           `json:"email"`
		Notes              string           `json:"notes"`
		Kind               PersonKind       `json:"kind"`
		ServiceDescription string           `json:"serviceDescription,omitempty"`
		MonthlyAmount      *decimal.Decimal `json:"monthlyAmount,omitempty"`
		CreationDate       time.Time        `json:"creationDate"`
		UpdatedDate        *time.Time       `json:"updatedDate,omitempty"`
	}
)

func NewPerson(name string, kind PersonKind, now time.Time) *Person {
	return &Person{
		Record:       Record{SyncState: SyncLocal},
		Name:         strings.TrimSpace(name),
		Kind:         kind,
		CreationDate: now,
	}
}

// Normalize trims every text field and lower-cases the email.
func (p *Person) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Notes = strings.TrimSpace(p.Notes)
	p.ServiceDescription = strings.TrimSpace(p.ServiceDescription)
	if p.Kind == "" {
		p.Kind = KindPerson
	}
}

// Touch stamps the update date and flags the record for sync.
func (p *Person) Touch(now time.Time) {
	p.UpdatedDate = timePtr(now)
	p.markPending()
}

// Contact joins phone and email with " · ", skipping empty parts.
func (p *Person) Contact() string {
	var parts []string
	for _, s := range []string{p.Phone, p.Email} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " · ")
}

func (p *Person) Validate() error {
	var pr problems
	if strings.TrimSpace(p.Name) == "" {
		pr.add("name is required")
	}
	if p.Email != "" && !emailPattern.MatchString(strings.TrimSpace(p.Email)) {
		pr.add("email is not well formed")
	}
	if p.Phone != "" && !phonePattern.MatchString(strings.TrimSpace(p.Phone)) {
		pr.add("phone contains invalid characters")
	}
	if p.Kind != "" && p.Kind != KindPerson && p.Kind != KindCompany {
		pr.add("invalid person kind")
	}
	if p.MonthlyAmount != nil && p.MonthlyAmount.IsNegative() {
		pr.add("monthly amount must not be negative")
	}
	return pr.err()
}
