package parse

import (
	"regexp"
	"strings"
)

var smartOKRe = regexp.MustCompile(`(?i)SMART Health Status:\s*OK`)

// Smart reports whether `smartctl -H` declared the device healthy
func Smart(text string) map[string]interface{} {
	pass := strings.Contains(strings.ToUpper(text), "PASSED") || smartOKRe.MatchString(text)
	return map[string]interface{}{"smart_pass": pass}
}

// IPMIPSU flags power supply records that mention a failure
func IPMIPSU(text string) map[string]interface{} {
	lines := nonBlankLines(text)
	ok := true
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l), "fail") {
			ok = false
			break
		}
	}
	return map[string]interface{}{
		"psu_ok":    ok,
		"psu_lines": len(lines),
	}
}

// IPMIFans counts fan sensor records
func IPMIFans(text string) map[string]interface{} {
	return map[string]interface{}{"fan_lines": len(nonBlankLines(text))}
}

// IPMIThermal counts temperature sensor records
func IPMIThermal(text string) map[string]interface{} {
	return map[string]interface{}{"thermal_lines": len(nonBlankLines(text))}
}

var criticalLogRe = regexp.MustCompile(`(?i)(fatal|panic|mce|uncorrected)`)

// Dmesg collects kernel log lines that indicate hardware or kernel faults
func Dmesg(text string) map[string]interface{} {
	critical := []string{}
	for _, l := range nonBlankLines(text) {
		if criticalLogRe.MatchString(l) {
			critical = append(critical, l)
		}
	}
	return map[string]interface{}{"critical": critical}
}

// OSRelease parses KEY=value lines from /etc/os-release
func OSRelease(text string) map[string]interface{} {
	release := make(map[string]string)
	for _, l := range nonBlankLines(text) {
		key, value, ok := strings.Cut(l, "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}
		release[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return map[string]interface{}{"os_release": release}
}

func nonBlankLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimRight(l, "\r"))
		}
	}
	return out
}
