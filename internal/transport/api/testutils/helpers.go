package testutils

import "strings"

// GenerateOverBytesUnderRunes строка из count рун, каждая по 4 байта.
func GenerateOverBytesUnderRunes(count int) string {
	return strings.Repeat("😁", count)
}
