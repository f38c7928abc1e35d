// Package bankref mints unique payout bank reference codes per partner.
//
// References behave like a mixed-radix odometer over a 7-character
// alphanumeric counter: digits wrap 9 -> 0 and letters wrap within their
// case-preserved alphabet, carrying leftwards. A carry past the leftmost
// position grows the string by one character.
package bankref

// DefaultSeed starts a partner's reference sequence.
const DefaultSeed = "AA11111"

// Next returns the successor of the previous reference. An empty previous
// reference yields the default seed.
func Next(prev string) string {
	if prev == "" {
		return DefaultSeed
	}

	b := []byte(prev)
	for i := len(b) - 1; i >= 0; i-- {
		c := b[i]
		switch {
		case c >= '0' && c <= '8', c >= 'a' && c <= 'y', c >= 'A' && c <= 'Y':
			b[i] = c + 1
			return string(b)
		case c == '9':
			b[i] = '0'
		case c == 'z':
			b[i] = 'a'
		case c == 'Z':
			b[i] = 'A'
		default:
			// non-alphanumeric positions carry through untouched
		}
	}

	// Carry ran past the leftmost position: grow by one character,
	// keeping the convention of the overflowed segment.
	head := prev[0]
	switch {
	case head >= '0' && head <= '9':
		return "1" + string(b)
	case head >= 'a' && head <= 'z':
		return "a" + string(b)
	default:
		return "A" + string(b)
	}
}
