package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// kBPerGiB converts meminfo's MemTotal to GiB the way expected totals are
// authored: a host reporting 16384000 kB is a 16 GiB host.
const kBPerGiB = 1024 * 1000

var memTotalRe = regexp.MustCompile(`MemTotal:\s+(\d+)\s+kB`)

// Meminfo extracts total memory in GiB from /proc/meminfo
func Meminfo(text string) map[string]interface{} {
	gib := 0.0
	if m := memTotalRe.FindStringSubmatch(text); m != nil {
		if kb, err := strconv.ParseFloat(m[1], 64); err == nil {
			gib = round2(kb / kBPerGiB)
		}
	}
	return map[string]interface{}{"total_gib": gib}
}

// DIMM is one populated memory device
type DIMM struct {
	Slot    string   `json:"slot"`
	SizeGiB *float64 `json:"size_gib"`
	SpeedMT *int     `json:"speed_mt"`
	Type    string   `json:"type"`
	ECC     bool     `json:"ecc"`
}

var eccTypes = map[string]bool{
	"single-bit ecc":            true,
	"multi-bit ecc":             true,
	"multi-bit, single-bit ecc": true,
	"ecc":                       true,
}

// Dmidecode extracts populated DIMMs from `dmidecode -t memory`
func Dmidecode(text string) map[string]interface{} {
	dimms := []DIMM{}
	var block []string
	flush := func() {
		if dimm, ok := parseMemoryDevice(block); ok {
			dimms = append(dimms, dimm)
		}
		block = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Memory Device") {
			flush()
		}
		block = append(block, line)
	}
	flush()

	return map[string]interface{}{"dimms": dimms}
}

func parseMemoryDevice(lines []string) (DIMM, bool) {
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "Memory Device") {
		return DIMM{}, false
	}
	fields := keyValues(lines)

	size := fields["Size"]
	if size == "" || strings.HasPrefix(strings.ToLower(size), "no module") {
		return DIMM{}, false
	}

	slot := firstNonEmpty(fields["Locator"], fields["Bank Locator"])

	ecc := eccTypes[strings.ToLower(fields["Error Correction Type"])]
	if !ecc {
		// A total width wider than the data width means check bits are present
		total, okTotal := leadingInt(fields["Total Width"])
		data, okData := leadingInt(fields["Data Width"])
		ecc = okTotal && okData && total > data
	}

	dimm := DIMM{
		Slot: slot,
		Type: fields["Type"],
		ECC:  ecc,
	}
	if gib, ok := sizeToGiB(size); ok {
		dimm.SizeGiB = &gib
	}
	for _, key := range []string{"Configured Memory Speed", "Configured Clock Speed", "Speed"} {
		if mt, ok := leadingInt(fields[key]); ok {
			dimm.SpeedMT = &mt
			break
		}
	}
	return dimm, true
}

// sizeToGiB converts dmidecode sizes such as "8192 MB" or "16 GB"
func sizeToGiB(size string) (float64, bool) {
	parts := strings.Fields(size)
	if len(parts) < 2 {
		return 0, false
	}
	n, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(parts[1]) {
	case "KB", "KIB":
		return round2(n / (1024 * 1024)), true
	case "MB", "MIB":
		return round2(n / 1024), true
	case "GB", "GIB":
		return n, true
	case "TB", "TIB":
		return n * 1024, true
	default:
		return 0, false
	}
}

// keyValues collects "Key: value" lines, keeping the first value per key
func keyValues(lines []string) map[string]string {
	out := make(map[string]string)
	for _, line := range lines {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := out[key]; !seen {
			out[key] = strings.TrimSpace(value)
		}
	}
	return out
}

var leadingIntRe = regexp.MustCompile(`\d+`)

func leadingInt(s string) (int, bool) {
	m := leadingIntRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
