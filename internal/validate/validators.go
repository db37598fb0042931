package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sourceplane/hostcheck/internal/parse"
)

// Tolerance absorbs float rounding at the edges of percentage bands
const epsilon = 1e-9

// TotalMemWithinPct passes when total_gib is within pct percent of the
// expected size. Args: expected GiB (default 16), pct (default 2).
func TotalMemWithinPct(parsed map[string]interface{}, args []interface{}) (bool, string) {
	expected := argFloat(args, 0, 16.0)
	pct := argFloat(args, 1, 2.0)
	actual, _ := toFloat(parsed["total_gib"])

	ok := math.Abs(actual-expected) <= expected*(pct/100)+epsilon
	return ok, fmt.Sprintf("MemTotal %g GiB vs expected %g ±%g%%", actual, expected, pct)
}

type dimmKey struct {
	slot     string
	sizeGiB  float64
	speedMT  int
	hasSpeed bool
	ecc      bool
}

// AllExpectedDIMMs passes when every expected DIMM is present with the same
// slot, size, speed and ECC flag. Expected ECC defaults to true.
func AllExpectedDIMMs(parsed map[string]interface{}, args []interface{}) (bool, string) {
	have := make(map[dimmKey]bool)
	for _, d := range dimmRecords(parsed["dimms"]) {
		have[keyOf(d, false)] = true
	}

	var expected []map[string]interface{}
	if len(args) > 0 {
		expected = records(args[0])
	}

	missing := []string{}
	for _, e := range expected {
		if !have[keyOf(e, true)] {
			missing = append(missing, fmt.Sprint(e["slot"]))
		}
	}
	if len(missing) > 0 {
		return false, fmt.Sprintf("Missing/mismatch: [%s]", strings.Join(missing, ", "))
	}
	return true, "All DIMMs present"
}

func keyOf(d map[string]interface{}, eccDefault bool) dimmKey {
	k := dimmKey{slot: fmt.Sprint(d["slot"]), ecc: eccDefault}
	if size, ok := toFloat(d["size_gib"]); ok {
		k.sizeGiB = math.Round(size*100) / 100
	}
	if speed, ok := toFloat(d["speed_mt"]); ok {
		k.speedMT = int(speed)
		k.hasSpeed = true
	}
	switch ecc := d["ecc"].(type) {
	case nil:
	case bool:
		k.ecc = ecc
	default:
		k.ecc = truthy(ecc)
	}
	return k
}

// dimmRecords normalizes parser output and decoded JSON to generic records
func dimmRecords(v interface{}) []map[string]interface{} {
	dimms, ok := v.([]parse.DIMM)
	if !ok {
		return records(v)
	}
	out := make([]map[string]interface{}, 0, len(dimms))
	for _, d := range dimms {
		rec := map[string]interface{}{"slot": d.Slot, "ecc": d.ECC}
		if d.SizeGiB != nil {
			rec["size_gib"] = *d.SizeGiB
		}
		if d.SpeedMT != nil {
			rec["speed_mt"] = *d.SpeedMT
		}
		out = append(out, rec)
	}
	return out
}

func records(v interface{}) []map[string]interface{} {
	switch list := v.(type) {
	case []map[string]interface{}:
		return list
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]interface{}); ok && len(m) > 0 {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// NICLinkUp passes when the link is reported up
func NICLinkUp(parsed map[string]interface{}, _ []interface{}) (bool, string) {
	link := parsed["link"]
	return link == "up", fmt.Sprintf("Link %v", link)
}

// NICSpeedAtLeast passes when speed_gbps meets the minimum in args[0]
func NICSpeedAtLeast(parsed map[string]interface{}, args []interface{}) (bool, string) {
	if len(args) == 0 {
		return false, "nic_speed_at_least requires a minimum speed in Gbps"
	}
	floor, ok := toFloat(args[0])
	if !ok {
		return false, fmt.Sprintf("invalid minimum speed %v", args[0])
	}
	speed, _ := toFloat(parsed["speed_gbps"])
	return speed >= floor, fmt.Sprintf("Speed %g Gbps >= %g", speed, floor)
}

// NICNoErrors passes when no error counter is above zero
func NICNoErrors(parsed map[string]interface{}, _ []interface{}) (bool, string) {
	counters := make(map[string]float64)
	switch errs := parsed["errors"].(type) {
	case map[string]int64:
		for k, v := range errs {
			counters[k] = float64(v)
		}
	case map[string]interface{}:
		for k, v := range errs {
			if f, ok := toFloat(v); ok {
				counters[k] = f
			}
		}
	}

	var bad []string
	for k, v := range counters {
		if v > 0 {
			bad = append(bad, fmt.Sprintf("%s=%g", k, v))
		}
	}
	if len(bad) == 0 {
		return true, "No NIC error counters > 0"
	}
	sort.Strings(bad)
	return false, "Errors: " + strings.Join(bad, ", ")
}

// DiskSmartPass passes when the SMART health check passed
func DiskSmartPass(parsed map[string]interface{}, _ []interface{}) (bool, string) {
	if pass, _ := parsed["smart_pass"].(bool); pass {
		return true, "SMART PASSED"
	}
	return false, "SMART not passed"
}

// NoCriticalLogs passes when no critical kernel log lines were found
func NoCriticalLogs(parsed map[string]interface{}, _ []interface{}) (bool, string) {
	n := 0
	switch crit := parsed["critical"].(type) {
	case []string:
		n = len(crit)
	case []interface{}:
		n = len(crit)
	}
	if n == 0 {
		return true, "No critical dmesg entries"
	}
	return false, fmt.Sprintf("%d critical lines", n)
}
