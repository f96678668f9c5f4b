package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
)

// Katipunan ng Kabataan membership age range.
const (
	MinYouthAge = 15
	MaxYouthAge = 30
)

// NormalizeProfilePayload trims text fields and canonicalises the contact
// number and enum values in place. It never fails; ValidateProfilePayload
// reports what is still wrong.
func NormalizeProfilePayload(p *models.YouthProfilePayload) {
	p.Personal.FirstName = strings.TrimSpace(p.Personal.FirstName)
	p.Personal.LastName = strings.TrimSpace(p.Personal.LastName)
	p.Personal.Sex = strings.ToLower(strings.TrimSpace(p.Personal.Sex))
	p.Personal.MiddleName = trimOptional(p.Personal.MiddleName)
	p.Personal.Suffix = trimOptional(p.Personal.Suffix)
	p.Personal.Barangay = trimOptional(p.Personal.Barangay)
	p.Personal.Address = trimOptional(p.Personal.Address)
	p.Personal.Email = trimOptional(p.Personal.Email)
	p.Personal.ContactNumber = trimOptional(p.Personal.ContactNumber)
	if p.Personal.ContactNumber != nil {
		if phone, err := NormalizePhone(*p.Personal.ContactNumber); err == nil {
			p.Personal.ContactNumber = &phone
		}
	}
	if p.Personal.Email != nil {
		email := strings.ToLower(*p.Personal.Email)
		p.Personal.Email = &email
	}

	p.Engagement.YouthClassification = strings.ToLower(strings.TrimSpace(p.Engagement.YouthClassification))
	p.Engagement.Interests = normalizeList(p.Engagement.Interests, true)
	p.Engagement.Organizations = normalizeList(p.Engagement.Organizations, false)
}

// ValidateProfilePayload checks a registration form before it enters review.
func ValidateProfilePayload(p *models.YouthProfilePayload, now time.Time) error {
	if err := ValidateNonEmpty("first name", p.Personal.FirstName); err != nil {
		return err
	}
	if err := ValidateLength("first name", p.Personal.FirstName, 0, 100); err != nil {
		return err
	}
	if err := ValidateNonEmpty("last name", p.Personal.LastName); err != nil {
		return err
	}
	if err := ValidateLength("last name", p.Personal.LastName, 0, 100); err != nil {
		return err
	}
	if _, ok := models.ValidSexes[p.Personal.Sex]; !ok {
		return fmt.Errorf("sex must be male or female")
	}

	if p.Personal.Birthdate.IsZero() {
		return fmt.Errorf("birthdate is required")
	}
	if p.Personal.Birthdate.After(now) {
		return fmt.Errorf("birthdate cannot be in the future")
	}
	if age := p.Personal.Birthdate.AgeOn(now); age < MinYouthAge || age > MaxYouthAge {
		return fmt.Errorf("age must be between %d and %d, got %d", MinYouthAge, MaxYouthAge, age)
	}

	if p.Personal.ContactNumber == nil && p.Personal.Email == nil {
		return fmt.Errorf("a contact number or email is required")
	}
	if p.Personal.ContactNumber != nil {
		if _, err := NormalizePhone(*p.Personal.ContactNumber); err != nil {
			return err
		}
	}
	if p.Personal.Email != nil {
		if err := ValidateEmail(*p.Personal.Email); err != nil {
			return err
		}
	}
	if err := ValidateOptionalLength("address", p.Personal.Address, MaxLocationLength); err != nil {
		return err
	}

	if p.Family.HouseholdSize != nil && (*p.Family.HouseholdSize < 1 || *p.Family.HouseholdSize > 50) {
		return fmt.Errorf("household size must be between 1 and 50")
	}

	if _, ok := models.ValidClassifications[p.Engagement.YouthClassification]; !ok {
		return fmt.Errorf("unknown youth classification %q", p.Engagement.YouthClassification)
	}
	if len(p.Engagement.Interests) > 20 {
		return fmt.Errorf("at most 20 interests are allowed")
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeList trims entries, drops blanks and duplicates.
func normalizeList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
