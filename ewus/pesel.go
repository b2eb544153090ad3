package ewus

import (
	"time"
	"unicode"
)

// Sex as encoded in the penultimate digit of a PESEL number
type Sex int

// Sexes; an even digit encodes female, an odd digit male
const (
	SexFemale Sex = iota
	SexMale
)

func (s Sex) String() string {
	if s == SexMale {
		return "male"
	}
	return "female"
}

// peselWeights are the checksum weights applied to the first ten digits
var peselWeights = [10]int{1, 3, 7, 9, 1, 3, 7, 9, 1, 3}

// ValidatePESEL validates a PESEL number: exactly 11 ASCII digits whose last
// digit matches the weighted checksum of the first ten.
func ValidatePESEL(pesel string) bool {
	if len(pesel) != 11 {
		return false
	}
	digits := make([]int, 11)
	for i, c := range pesel {
		if i > 10 || !unicode.IsDigit(c) || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
	}
	sum := 0
	for i := 0; i < 10; i++ {
		sum += digits[i] * peselWeights[i]
	}
	control := (10 - (sum % 10)) % 10
	return digits[10] == control
}

// centuries maps the month-encoding offset (encoded month / 20) to the first
// year of the century encoded
var centuries = [5]int{1900, 2000, 2100, 2200, 1800}

// ExtractPESEL decodes the birth date and sex encoded in a PESEL number.
// The month digits carry a century offset: +0 for the 1900s, +20 for the
// 2000s, +40 for the 2100s, +60 for the 2200s and +80 for the 1800s.
// Fails when the number is invalid or encodes a nonexistent calendar date.
func ExtractPESEL(pesel string) (time.Time, Sex, error) {
	if !ValidatePESEL(pesel) {
		return time.Time{}, 0, newError(KindMissingInput, "invalid PESEL number: %s", pesel)
	}
	year := int(pesel[0]-'0')*10 + int(pesel[1]-'0')
	encodedMonth := int(pesel[2]-'0')*10 + int(pesel[3]-'0')
	day := int(pesel[4]-'0')*10 + int(pesel[5]-'0')
	month := encodedMonth % 20
	century := encodedMonth / 20
	if month < 1 || month > 12 {
		return time.Time{}, 0, newError(KindMissingInput, "invalid PESEL number: %s: bad month encoding %02d", pesel, encodedMonth)
	}
	year += centuries[century]
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises out-of-range days, so a round-trip mismatch means
	// the encoded date does not exist
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, 0, newError(KindMissingInput, "invalid PESEL number: %s: no such date", pesel)
	}
	sex := SexFemale
	if (pesel[9]-'0')%2 == 1 {
		sex = SexMale
	}
	return date, sex, nil
}
