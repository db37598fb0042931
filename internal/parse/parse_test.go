package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dmidecodeSample = `# dmidecode 3.3
Getting SMBIOS data from sysfs.

Handle 0x1100, DMI type 17, 84 bytes
Memory Device
	Array Handle: 0x1000
	Total Width: 72 bits
	Data Width: 64 bits
	Size: 16 GB
	Form Factor: DIMM
	Locator: DIMM_A1
	Bank Locator: P0_Node0_Channel0_Dimm0
	Type: DDR4
	Type Detail: Synchronous Registered (Buffered)
	Speed: 3200 MT/s
	Configured Memory Speed: 2933 MT/s

Handle 0x1101, DMI type 17, 84 bytes
Memory Device
	Total Width: 64 bits
	Data Width: 64 bits
	Size: 8192 MB
	Locator: DIMM_B1
	Type: DDR4
	Speed: 2666 MT/s
	Configured Memory Speed: Unknown
	Error Correction Type: Single-bit ECC

Handle 0x1102, DMI type 17, 84 bytes
Memory Device
	Size: No Module Installed
	Locator: DIMM_C1
	Type: Unknown
`

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.Len(t, r.Names(), 11)
	assert.True(t, r.Has("parse_meminfo"))
	assert.False(t, r.Has("parse_lshw"))

	_, err := r.Lookup("parse_lshw")
	var unknown *UnknownParserError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "parse_lshw", unknown.Name)
}

func TestRegistry_ParseFallback(t *testing.T) {
	r := NewRegistry()

	parsed, err := r.Parse("", "hello")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"raw_len": 5}, parsed)

	parsed, err = r.Parse("parse_lshw", "hello world")
	assert.Error(t, err)
	assert.Equal(t, map[string]interface{}{"raw_len": 11}, parsed)
}

func TestMeminfo(t *testing.T) {
	assert.Equal(t, 16.0, Meminfo("MemTotal:       16384000 kB\nMemFree: 1 kB\n")["total_gib"])
	assert.Equal(t, 0.0, Meminfo("garbage")["total_gib"])
	assert.Equal(t, 0.0, Meminfo("")["total_gib"])
}

func TestDmidecode(t *testing.T) {
	dimms := Dmidecode(dmidecodeSample)["dimms"].([]DIMM)
	require.Len(t, dimms, 2)

	a1 := dimms[0]
	assert.Equal(t, "DIMM_A1", a1.Slot)
	require.NotNil(t, a1.SizeGiB)
	assert.Equal(t, 16.0, *a1.SizeGiB)
	require.NotNil(t, a1.SpeedMT)
	assert.Equal(t, 2933, *a1.SpeedMT)
	assert.Equal(t, "DDR4", a1.Type)
	assert.True(t, a1.ECC, "72-bit total width implies ECC")

	b1 := dimms[1]
	assert.Equal(t, "DIMM_B1", b1.Slot)
	assert.Equal(t, 8.0, *b1.SizeGiB)
	assert.Equal(t, 2666, *b1.SpeedMT, "unknown configured speed falls back to Speed")
	assert.True(t, b1.ECC)
}

func TestDmidecode_Tolerant(t *testing.T) {
	assert.Empty(t, Dmidecode("")["dimms"])
	assert.Empty(t, Dmidecode("not dmidecode output")["dimms"])

	dimms := Dmidecode("Memory Device\n\tSize: lots\n\tLocator: X\n")["dimms"].([]DIMM)
	require.Len(t, dimms, 1)
	assert.Nil(t, dimms[0].SizeGiB)
	assert.Nil(t, dimms[0].SpeedMT)
	assert.False(t, dimms[0].ECC)
}

func TestEthtool(t *testing.T) {
	out := Ethtool(`Settings for eth0:
	Speed: 25000Mb/s
	Duplex: Full
	Link detected: yes`)
	assert.Equal(t, "up", out["link"])
	assert.Equal(t, 25.0, out["speed_gbps"])
	assert.Equal(t, "full", out["duplex"])

	out = Ethtool("Settings for eth1:\n\tSpeed: Unknown!\n\tLink detected: no\n")
	assert.Equal(t, "down", out["link"])
	assert.Nil(t, out["speed_gbps"])
}

func TestEthtoolStats(t *testing.T) {
	out := EthtoolStats(`NIC statistics:
     rx_packets: 1000
     rx_errors: 0
     tx_dropped: 3
     rx_crc_errors: 2
     link_fault: n/a
     tx_bytes: 9999`)

	assert.Equal(t, map[string]int64{"rx_errors": 0, "tx_dropped": 3, "rx_crc_errors": 2}, out["errors"])
	assert.Empty(t, EthtoolStats("")["errors"])
}

func TestSysfsNIC(t *testing.T) {
	out := SysfsNIC("up\n10000\n")
	assert.Equal(t, "up", out["link"])
	assert.Equal(t, 10.0, out["speed_gbps"])

	out = SysfsNIC("down\n-1\n")
	assert.Equal(t, "down", out["link"])
	assert.Nil(t, out["speed_gbps"])

	out = SysfsNIC("")
	assert.Equal(t, "down", out["link"])
}

func TestSmart(t *testing.T) {
	assert.Equal(t, true, Smart("SMART overall-health self-assessment test result: PASSED")["smart_pass"])
	assert.Equal(t, true, Smart("SMART Health Status: OK")["smart_pass"])
	assert.Equal(t, false, Smart("SMART overall-health self-assessment test result: FAILED!")["smart_pass"])
	assert.Equal(t, false, Smart("")["smart_pass"])
}

func TestIPMI(t *testing.T) {
	psu := IPMIPSU("PSU1 Status | 0x01 | ok\nPSU2 Status | 0x02 | Failure detected\n")
	assert.Equal(t, false, psu["psu_ok"])
	assert.Equal(t, 2, psu["psu_lines"])
	assert.Equal(t, true, IPMIPSU("")["psu_ok"])

	assert.Equal(t, 3, IPMIFans("FAN1 | 4000 RPM | ok\nFAN2 | 4100 RPM | ok\n\nFAN3 | 0 RPM | cr\n")["fan_lines"])
	assert.Equal(t, 0, IPMIThermal("")["thermal_lines"])
}

func TestDmesg(t *testing.T) {
	out := Dmesg(`[    1.0] usb 1-1: new device
[ 1234.5] mce: [Hardware Error]: Machine check events logged
[ 1235.0] EDAC MC0: 1 UE uncorrected error on DIMM_A1
[ 1240.0] systemd: commencing shutdown of nothing`)

	assert.Len(t, out["critical"], 2)
	assert.Empty(t, Dmesg("")["critical"])

	// patterns match anywhere in the line, case-insensitively
	sub := Dmesg("[ 9.0] MCELOG daemon started\n[ 9.1] Kernel PANIC-ish message\n[ 9.2] eth0: link up")
	assert.Equal(t, []string{"[ 9.0] MCELOG daemon started", "[ 9.1] Kernel PANIC-ish message"}, sub["critical"])
}

func TestOSRelease(t *testing.T) {
	out := OSRelease("NAME=\"Ubuntu\"\nVERSION_ID=\"22.04\"\n# comment\nID=ubuntu\ngarbage\n")
	assert.Equal(t, map[string]string{"NAME": "Ubuntu", "VERSION_ID": "22.04", "ID": "ubuntu"}, out["os_release"])
}
