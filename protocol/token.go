package protocol

// IsToken returns true if s is a non-empty run of ASCII letters and digits.
func IsToken(s string) bool {
	if len(s) == 0 {
		return false
	}

	for i := 0; i < len(s); i++ {
		if !IsAlnum(s[i]) {
			return false
		}
	}

	return true
}

func IsAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9')
}

// IsPrintable returns true if every byte of s is in 0x20-0x7E.
func IsPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}

	return true
}

func checkToken(s string, what string) error {
	if !IsToken(s) {
		return invalid(s, "%s must be a token", what)
	}

	return nil
}
