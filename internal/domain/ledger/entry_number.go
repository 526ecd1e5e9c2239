package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	entryNumberPrefix = "JE-"
	entryNumberDigits = 6
)

// FirstEntryNumber is used when no parseable entry number exists yet
var FirstEntryNumber = FormatEntryNumber(1)

// FormatEntryNumber renders a sequence as JE-NNNNNN. Sequences wider than six digits are not truncated.
func FormatEntryNumber(seq int64) string {
	return fmt.Sprintf("%s%0*d", entryNumberPrefix, entryNumberDigits, seq)
}

// ParseEntryNumber extracts the sequence from a JE-NNNNNN number
func ParseEntryNumber(number string) (int64, bool) {
	if !strings.HasPrefix(number, entryNumberPrefix) {
		return 0, false
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(number, entryNumberPrefix), 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NextEntryNumber returns the number after highest, or FirstEntryNumber when highest is empty or malformed
func NextEntryNumber(highest string) string {
	seq, ok := ParseEntryNumber(highest)
	if !ok {
		return FirstEntryNumber
	}
	return FormatEntryNumber(seq + 1)
}
