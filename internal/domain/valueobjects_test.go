package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "0671234567", want: "+380671234567"},
		{raw: "380671234567", want: "+380671234567"},
		{raw: "671234567", want: "+380671234567"},
		{raw: "80671234567", want: "+380671234567"},
		{raw: "+38 (067) 123-45-67", want: "+380671234567"},
		{raw: "12345", wantErr: true},
		{raw: "+14155552671", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NewPhone(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNewEmail(t *testing.T) {
	got, err := NewEmail("  Ivan.Petrenko@Acme.UA ")
	require.NoError(t, err)
	assert.Equal(t, "ivan.petrenko@acme.ua", got.String())

	for _, raw := range []string{"", "ivan", "ivan@acme", "ivan @acme.ua", "@acme.ua"} {
		_, err := NewEmail(raw)
		assert.ErrorIs(t, err, ErrInvalidEmail, raw)
	}
}

func TestNewTaxNumber(t *testing.T) {
	_, err := NewTaxNumber("123")
	assert.ErrorIs(t, err, ErrInvalidTaxNumber)

	got, err := NewTaxNumber("1234567890")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", got.String())

	got, err = NewTaxNumber("123 456 7890")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", got.String())
}

func TestNewCompanyTaxID(t *testing.T) {
	got, err := NewCompanyTaxID("12-34-56-78")
	require.NoError(t, err)
	assert.Equal(t, "12345678", got.String())

	_, err = NewCompanyTaxID("1234567890")
	assert.ErrorIs(t, err, ErrInvalidEdrpou)
}

func TestNewPassportDetails(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	issued := NewDate(2015, time.March, 10)

	t.Run("empty group", func(t *testing.T) {
		p, err := NewPassportDetails(PassportInput{}, now)
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("complete group", func(t *testing.T) {
		p, err := NewPassportDetails(PassportInput{Series: " kk ", Number: "123456", IssuedBy: "Kyiv", IssuedDate: &issued}, now)
		require.NoError(t, err)
		assert.Equal(t, "KK", p.Series())
		assert.Equal(t, "123456", p.Number())
		assert.Equal(t, issued.Time, p.IssuedDate())
	})

	t.Run("partial group", func(t *testing.T) {
		_, err := NewPassportDetails(PassportInput{Number: "123456"}, now)
		assert.ErrorIs(t, err, ErrInvalidPassport)
	})

	t.Run("issued in the future", func(t *testing.T) {
		future := NewDate(2030, time.January, 1)
		_, err := NewPassportDetails(PassportInput{Number: "123456", IssuedBy: "Kyiv", IssuedDate: &future}, now)
		assert.True(t, errors.Is(err, ErrInvalidPassport))
	})
}

func TestSlug(t *testing.T) {
	_, err := NewSlug("acme-sales")
	assert.NoError(t, err)

	for _, raw := range []string{"abc", "Acme-Sales", "acme--sales", "-acme", "acme_sales"} {
		_, err := NewSlug(raw)
		assert.ErrorIs(t, err, ErrInvalidSlug, raw)
	}

	generated, err := GenerateSlug()
	require.NoError(t, err)
	assert.Len(t, generated.String(), GeneratedSlugLength)
	_, err = NewSlug(generated.String())
	assert.NoError(t, err)
}

func TestGenerateSlug_UniformAlphabet(t *testing.T) {
	const slugs = 10000
	counts := make(map[rune]int, len(slugAlphabet))
	for i := 0; i < slugs; i++ {
		s, err := GenerateSlug()
		require.NoError(t, err)
		for _, r := range s.String() {
			counts[r]++
		}
	}

	require.Len(t, counts, len(slugAlphabet))
	expected := float64(slugs*GeneratedSlugLength) / float64(len(slugAlphabet))
	for r, n := range counts {
		assert.InDelta(t, expected, float64(n), expected*0.08, "character %q", r)
	}
}
