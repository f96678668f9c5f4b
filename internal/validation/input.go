package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation limits.
const (
	MinUsernameLength            = 3
	MaxUsernameLength            = 30
	MinFullNameLength            = 2
	MaxFullNameLength            = 150
	MinProposalTitleLength       = 5
	MaxProposalTitleLength       = 200
	MinProposalDescriptionLength = 20
	MaxProposalDescriptionLength = 10000
	MaxProposalTextLength        = 5000
	MaxCategoryLength            = 100
	MaxLocationLength            = 255
	MaxReasonLength              = 2000
	MaxCommitteeNameLength       = 120
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	slugRegex        = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	phoneDigitsRegex = regexp.MustCompile(`^(?:\+?63|0)9\d{9}$`)
)

// ValidateLength checks the rune length of a string. Zero bounds are ignored.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// ValidateOptionalLength is ValidateLength for nullable text.
func ValidateOptionalLength(fieldName string, value *string, max int) error {
	if value == nil {
		return nil
	}
	return ValidateLength(fieldName, strings.TrimSpace(*value), 0, max)
}

// ValidateEmail checks an email address.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email is required")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("email must contain exactly one @")
	}

	localPart, domainPart := parts[0], parts[1]
	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("email local part must be 1 to 64 characters")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("email domain must be 1 to 255 characters")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("email local part contains invalid characters")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("email domain is malformed")
	}
	return nil
}

// ValidateNonEmpty checks that a string is not blank.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateUsername checks a login name.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if err := ValidateLength("username", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may only contain letters, digits and underscore")
	}
	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("username cannot start with a digit")
	}
	return nil
}

// ValidateFullName checks a person's display name.
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("full name is required")
	}
	if err := ValidateLength("full name", name, MinFullNameLength, MaxFullNameLength); err != nil {
		return err
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) && !strings.ContainsRune("-.'", r) {
			return fmt.Errorf("full name contains invalid characters")
		}
	}
	return nil
}

// NormalizePhone strips separators from a Philippine mobile number and
// returns it in +639XXXXXXXXX form.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	if !phoneDigitsRegex.MatchString(cleaned) {
		return "", fmt.Errorf("contact number must be a Philippine mobile number like 09171234567")
	}
	return "+63" + cleaned[len(cleaned)-10:], nil
}

// ValidateSlug checks a lowercase, dash separated identifier.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if err := ValidateLength("slug", slug, 2, 60); err != nil {
		return err
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("slug may only contain lowercase letters, digits and dashes")
	}
	return nil
}

// ValidateProposalTitle checks a proposal title.
func ValidateProposalTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	return ValidateLength("title", title, MinProposalTitleLength, MaxProposalTitleLength)
}

// ValidateProposalDescription checks a proposal description.
func ValidateProposalDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("description is required")
	}
	return ValidateLength("description", description, MinProposalDescriptionLength, MaxProposalDescriptionLength)
}

// ValidateReason checks a rejection reason.
func ValidateReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("rejection reason is required")
	}
	return ValidateLength("rejection reason", reason, 0, MaxReasonLength)
}
