package domain

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
	"time"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+380\d{9}$`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

const (
	slugMinLength       = 5
	slugMaxLength       = 50
	GeneratedSlugLength = 10
	slugAlphabet        = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Email is a trimmed, lower-cased email address.
type Email struct{ value string }

func NewEmail(raw string) (Email, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(v) {
		return Email{}, ErrInvalidEmail
	}
	return Email{value: v}, nil
}

func (e Email) String() string { return e.value }

// Phone is a Ukrainian phone number in +380XXXXXXXXX form.
type Phone struct{ value string }

func NewPhone(raw string) (Phone, error) {
	digits := nonDigits.ReplaceAllString(raw, "")

	var candidate string
	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		candidate = "+38" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "80"):
		candidate = "+3" + digits
	case len(digits) == 9:
		candidate = "+380" + digits
	default:
		candidate = "+" + digits
	}

	if !phonePattern.MatchString(candidate) {
		return Phone{}, ErrInvalidPhone
	}
	return Phone{value: candidate}, nil
}

func (p Phone) String() string { return p.value }

// TaxNumber is the 10-digit individual tax identifier (RNOKPP).
type TaxNumber struct{ value string }

func NewTaxNumber(raw string) (TaxNumber, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) != 10 {
		return TaxNumber{}, ErrInvalidTaxNumber
	}
	return TaxNumber{value: digits}, nil
}

func (t TaxNumber) String() string { return t.value }

// CompanyTaxID is the 8-digit legal entity registry code (EDRPOU).
type CompanyTaxID struct{ value string }

func NewCompanyTaxID(raw string) (CompanyTaxID, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) != 8 {
		return CompanyTaxID{}, ErrInvalidEdrpou
	}
	return CompanyTaxID{value: digits}, nil
}

func (c CompanyTaxID) String() string { return c.value }

// PassportDetails groups the identity document fields of an individual.
// Number, IssuedBy and IssuedDate are filled together or not at all.
type PassportDetails struct {
	series     string
	number     string
	issuedBy   string
	issuedDate time.Time
}

// PassportInput is the raw, unvalidated passport group.
type PassportInput struct {
	Series     string `json:"series,omitempty"`
	Number     string `json:"number,omitempty"`
	IssuedBy   string `json:"issued_by,omitempty"`
	IssuedDate *Date  `json:"issued_date,omitempty"`
}

// NewPassportDetails returns nil when every field is empty.
func NewPassportDetails(in PassportInput, now time.Time) (*PassportDetails, error) {
	series := strings.ToUpper(strings.TrimSpace(in.Series))
	number := strings.TrimSpace(in.Number)
	issuedBy := strings.TrimSpace(in.IssuedBy)
	issued := in.IssuedDate.Ptr()
	hasDate := issued != nil

	if series == "" && number == "" && issuedBy == "" && !hasDate {
		return nil, nil
	}
	if number == "" || issuedBy == "" || !hasDate {
		return nil, ErrInvalidPassport
	}
	if issued.After(now) {
		return nil, ErrInvalidPassport
	}

	return &PassportDetails{
		series:     series,
		number:     number,
		issuedBy:   issuedBy,
		issuedDate: issued.UTC(),
	}, nil
}

// RestorePassportDetails rebuilds a stored passport without re-validating the issue date.
func RestorePassportDetails(series, number, issuedBy string, issuedDate time.Time) *PassportDetails {
	if number == "" {
		return nil
	}
	return &PassportDetails{series: series, number: number, issuedBy: issuedBy, issuedDate: issuedDate}
}

func (p *PassportDetails) Series() string        { return p.series }
func (p *PassportDetails) Number() string        { return p.number }
func (p *PassportDetails) IssuedBy() string      { return p.issuedBy }
func (p *PassportDetails) IssuedDate() time.Time { return p.issuedDate }

// Slug is the public, URL-safe workspace handle.
type Slug struct{ value string }

func NewSlug(raw string) (Slug, error) {
	v := strings.TrimSpace(raw)
	if len(v) < slugMinLength || len(v) > slugMaxLength || !slugPattern.MatchString(v) {
		return Slug{}, ErrInvalidSlug
	}
	return Slug{value: v}, nil
}

// GenerateSlug returns a random lowercase alphanumeric slug. Callers must
// check it against the store and regenerate on collision.
func GenerateSlug() (Slug, error) {
	buf := make([]byte, GeneratedSlugLength)
	size := big.NewInt(int64(len(slugAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return Slug{}, err
		}
		buf[i] = slugAlphabet[n.Int64()]
	}
	return Slug{value: string(buf)}, nil
}

func (s Slug) String() string { return s.value }
