package validators

import "regexp"

// CardNumber validates a payment card number with the Luhn checksum.
func CardNumber(value string) Result {
	if luhn(value) {
		return pass()
	}
	return fail("CardNumber", "value", value)
}

func luhn(value string) bool {
	if value == "" {
		return false
	}
	sum := 0
	parity := len(value) % 2
	for i, r := range value {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

var (
	visaPrefix       = regexp.MustCompile(`^4`)
	mastercardPrefix = regexp.MustCompile(`^(51|52|53|54|55|22|23|24|25|26|27)`)
	amexPrefix       = regexp.MustCompile(`^(34|37)`)
	unionPayPrefix   = regexp.MustCompile(`^62`)
	dinersPrefix     = regexp.MustCompile(`^(30|36|38|39)`)
	jcbPrefix        = regexp.MustCompile(`^35`)
	discoverPrefix   = regexp.MustCompile(`^(60|64|65)`)
)

func brand(name string, value string, lengths []int, prefix *regexp.Regexp) Result {
	okLen := false
	for _, l := range lengths {
		if len(value) == l {
			okLen = true
			break
		}
	}
	if luhn(value) && okLen && prefix.MatchString(value) {
		return pass()
	}
	return fail(name, "value", value)
}

// Visa validates a Visa card number.
func Visa(value string) Result {
	return brand("Visa", value, []int{16}, visaPrefix)
}

// Mastercard validates a Mastercard card number.
func Mastercard(value string) Result {
	return brand("Mastercard", value, []int{16}, mastercardPrefix)
}

// Amex validates an American Express card number.
func Amex(value string) Result {
	return brand("Amex", value, []int{15}, amexPrefix)
}

// UnionPay validates a UnionPay card number.
func UnionPay(value string) Result {
	return brand("UnionPay", value, []int{16}, unionPayPrefix)
}

// Diners validates a Diners Club card number.
func Diners(value string) Result {
	return brand("Diners", value, []int{14, 16}, dinersPrefix)
}

// JCB validates a JCB card number.
func JCB(value string) Result {
	return brand("JCB", value, []int{16}, jcbPrefix)
}

// Discover validates a Discover card number.
func Discover(value string) Result {
	return brand("Discover", value, []int{16}, discoverPrefix)
}
