// Package codename generates and validates source codenames: passphrases of
// several words drawn uniformly from a fixed wordlist.
package codename

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/deaddrop/internal/common"
)

const (
	DefaultNumWords            = 7
	DefaultMaxCodenameLen      = 128
	DefaultMaxGenerateAttempts = 5
)

// allowedPunct is the punctuation accepted in a codename besides letters,
// digits and the space separator.
const allowedPunct = `&#;?:=@_.*+()'"$%!-`

// Validate trims surrounding whitespace from raw and checks its length and
// character set. It is cheap and must run before any hashing.
func Validate(raw string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxCodenameLen
	}
	c := strings.TrimSpace(raw)
	if len(c) < 1 || len(c) > maxLen {
		return "", common.ErrInvalidInput
	}
	for i := 0; i < len(c); i++ {
		if !allowedByte(c[i]) {
			return "", common.ErrInvalidInput
		}
	}
	return c, nil
}

func allowedByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == ' ':
		return true
	}
	return strings.IndexByte(allowedPunct, b) >= 0
}

// Check verifies the sizing precondition of a wordlist: every word validates on
// its own and numWords copies of the longest word fit in maxLen.
func Check(words []string, numWords, maxLen int) error {
	if len(words) == 0 {
		return fmt.Errorf("wordlist is empty")
	}
	longest := 0
	for _, w := range words {
		if _, err := Validate(w, maxLen); err != nil || strings.Contains(w, " ") {
			return fmt.Errorf("word %q is not a valid codename fragment", w)
		}
		longest = max(longest, len(w))
	}
	if worst := numWords*longest + numWords - 1; worst > maxLen {
		return fmt.Errorf("%d words of length %d need %d characters, limit is %d", numWords, longest, worst, maxLen)
	}
	return nil
}
