package addon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	BYTE = 1.0 << (10 * iota)
	KIBIBYTE
	MEBIBYTE
	GIBIBYTE
	TEBIBYTE
)

var sizePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(TB|TiB|GB|GiB|MB|MiB|KB|KiB)\b`)

// FormatSize renders a byte count the way providers usually display it.
func FormatSize(bytes uint64) string {
	unit := ""
	value := float64(bytes)

	switch {
	case bytes >= TEBIBYTE:
		unit = "TB"
		value = value / TEBIBYTE
	case bytes >= GIBIBYTE:
		unit = "GB"
		value = value / GIBIBYTE
	case bytes >= MEBIBYTE:
		unit = "MB"
		value = value / MEBIBYTE
	case bytes >= KIBIBYTE:
		unit = "KB"
		value = value / KIBIBYTE
	case bytes >= BYTE:
		unit = "B"
	case bytes == 0:
		return ""
	}

	stringValue := strings.TrimSuffix(
		fmt.Sprintf("%.2f", value), ".00",
	)

	return fmt.Sprintf("%s %s", stringValue, unit)
}

// FindSize returns the first size-looking token ("1.4 GB", "700MB") of a display text.
func FindSize(text string) string {
	loc := sizePattern.FindStringSubmatch(text)
	if loc == nil {
		return ""
	}
	return loc[1] + " " + strings.ToUpper(loc[2][:1]) + "B"
}

// ParseSize converts a display size into bytes. Units are treated as binary, which is what
// providers mean in practice whatever suffix they print.
func ParseSize(display string) (int64, bool) {
	loc := sizePattern.FindStringSubmatch(display)
	if loc == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(loc[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}

	switch strings.ToUpper(loc[2][:1]) {
	case "T":
		value *= TEBIBYTE
	case "G":
		value *= GIBIBYTE
	case "M":
		value *= MEBIBYTE
	case "K":
		value *= KIBIBYTE
	}

	return int64(value), true
}
