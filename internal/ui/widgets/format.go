package widgets

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
)

// Bytes renders a byte count the way the CLI tables do ("1.5 GB").
func Bytes(n uint64) string {
	return (datasize.ByteSize(n) * datasize.B).HR()
}

// Usage is "used / total" or just the total when nothing is used.
func Usage(used, total uint64) string {
	if total == 0 {
		return "-"
	}
	if used == 0 {
		return Bytes(total)
	}
	return Bytes(used) + " / " + Bytes(total)
}

// Uptime renders seconds as "3d 4h", "2h 10m" or "45s".
func Uptime(secs int64) string {
	if secs <= 0 {
		return "-"
	}
	d := time.Duration(secs) * time.Second
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, h)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// Percent renders a 0..1 fraction.
func Percent(f float64) string {
	return fmt.Sprintf("%3.0f%%", clamp01(f)*100)
}

// Truncate cuts s to width runes with a trailing ellipsis.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
