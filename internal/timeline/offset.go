package timeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseOffset parses a "mm:ss" window-relative offset. Minutes may exceed
// 59 for windows longer than an hour ("75:30" is 75m30s); seconds must be
// two digits in [00, 59].
func ParseOffset(s string) (time.Duration, error) {
	mm, ss, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid offset %q: want mm:ss", s)
	}
	if len(mm) < 2 || len(ss) != 2 {
		return 0, fmt.Errorf("invalid offset %q: want zero-padded mm:ss", s)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("invalid offset %q: bad minutes", s)
	}
	seconds, err := strconv.Atoi(ss)
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("invalid offset %q: bad seconds", s)
	}
	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, nil
}

// FormatOffset renders a duration as zero-padded "mm:ss". Sub-second
// precision is truncated; negative durations are clamped to "00:00".
func FormatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
