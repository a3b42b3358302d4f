package trace

import (
	"fmt"
)

// ParseBytes reads a byte quantity of the form <decimal><unit> where unit
// is one of B, K, KiB, M, MiB, G, GiB (binary factors).
func ParseBytes(text string) (uint64, error) {
	i := 0
	var n uint64
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		n = n*10 + uint64(text[i]-'0')
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("parsing size %q: no numeral", text)
	}
	switch text[i:] {
	case "B":
		return n, nil
	case "K", "KiB":
		return n << 10, nil
	case "M", "MiB":
		return n << 20, nil
	case "G", "GiB":
		return n << 30, nil
	case "":
		return 0, fmt.Errorf("parsing size %q: no unit specified", text)
	}
	return 0, fmt.Errorf("parsing size %q: unknown unit %q (want B/K/KiB/M/MiB/G/GiB)", text, text[i:])
}

var byteUnits = [...]string{"Bytes", "KBytes", "MBytes", "GBytes"}

// PrettyBytes renders a size with binary prefixes.
func PrettyBytes(size uint64) string {
	d := float64(size)
	unit := 0
	for d > 1024 && unit < len(byteUnits)-1 {
		d /= 1024
		unit++
	}
	return fmt.Sprintf("%.6f %s", d, byteUnits[unit])
}

// PrettyNanos renders a duration in milliseconds.
func PrettyNanos(ns uint64) string {
	return fmt.Sprintf("%.6f ms", float64(ns)/1e6)
}
