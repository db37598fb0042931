package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	linkDetectedRe = regexp.MustCompile(`(?i)Link detected:\s*yes`)
	ethSpeedRe     = regexp.MustCompile(`Speed:\s*(\d+)\s*Mb/s`)
	duplexRe       = regexp.MustCompile(`Duplex:\s*(\w+)`)
)

// Ethtool extracts link state and speed from `ethtool <iface>`
func Ethtool(text string) map[string]interface{} {
	link := "down"
	if linkDetectedRe.MatchString(text) {
		link = "up"
	}

	var speed interface{}
	if m := ethSpeedRe.FindStringSubmatch(text); m != nil {
		if mbps, err := strconv.Atoi(m[1]); err == nil {
			speed = float64(mbps) / 1000
		}
	}

	var duplex interface{}
	if m := duplexRe.FindStringSubmatch(text); m != nil {
		duplex = strings.ToLower(m[1])
	}

	return map[string]interface{}{
		"link":       link,
		"speed_gbps": speed,
		"duplex":     duplex,
	}
}

var errorCounterKeys = []string{"err", "drop", "fault"}

// EthtoolStats collects error, drop and fault counters from `ethtool -S`
func EthtoolStats(text string) map[string]interface{} {
	errs := make(map[string]int64)
	for _, line := range strings.Split(text, "\n") {
		if !containsAny(line, errorCounterKeys) {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		n, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
		if err != nil || n < 0 {
			continue
		}
		errs[strings.TrimSuffix(parts[0], ":")] = n
	}
	return map[string]interface{}{"errors": errs}
}

// SysfsNIC reads operstate and speed as printed by
// `cat /sys/class/net/<iface>/operstate /sys/class/net/<iface>/speed`
func SysfsNIC(text string) map[string]interface{} {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	link := "down"
	if len(lines) > 0 && lines[0] == "up" {
		link = "up"
	}

	var speed interface{}
	if len(lines) > 1 {
		if mbps, err := strconv.Atoi(lines[1]); err == nil && mbps > 0 {
			speed = float64(mbps) / 1000
		}
	}

	return map[string]interface{}{
		"link":       link,
		"speed_gbps": speed,
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
