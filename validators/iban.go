package validators

import "regexp"

var ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)

// IBAN validates an International Bank Account Number: shape check
// followed by the mod-97 test.
func IBAN(value string) Result {
	if ibanPattern.MatchString(value) && mod97(value) {
		return pass()
	}
	return fail("IBAN", "value", value)
}

// mod97 moves the country code and check digits to the end, expands
// letters to two-digit values (A=10 .. Z=35) and checks the whole number
// modulo 97 equals 1. The remainder is folded digit by digit to avoid
// overflow.
func mod97(value string) bool {
	rearranged := value[4:] + value[:4]
	rem := 0
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			v := 10 + int(r-'A')
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}
