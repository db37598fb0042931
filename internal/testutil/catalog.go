// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/sourceplane/hostcheck/internal/model"
)

// CatalogYAML is a small catalog covering every action class the engine
// distinguishes: plain, templated, sudo, and mutating.
const CatalogYAML = `
actions:
  read_meminfo:
    cmd: cat /proc/meminfo
    read_only: true
    parser: parse_meminfo
  read_dimms:
    cmd: sudo -n /usr/sbin/dmidecode -t memory
    read_only: true
    requires_sudo: true
    parser: parse_dmidecode
  read_nic_link:
    cmd: /usr/sbin/ethtool {{.iface}}
    read_only: true
    parser: parse_ethtool
  read_sysfs_nic:
    cmd: cat /sys/class/net/{{.iface}}/operstate /sys/class/net/{{.iface}}/speed
    read_only: true
    parser: parse_sysfs_nic
  read_smart:
    cmd: sudo -n /usr/sbin/smartctl -H {{.device}}
    read_only: true
    requires_sudo: true
    parser: parse_smart
  read_ipmi_fans:
    cmd: sudo -n /usr/bin/ipmitool sdr type Fan
    read_only: true
    requires_sudo: true
    parser: parse_ipmi_fans
  ping_self:
    cmd: ping -c 1 {{.host}}
    read_only: true
  echo_arg:
    cmd: echo {{.word}}
    read_only: true
  restart_nic:
    cmd: sudo -n /usr/sbin/ip link set {{.iface}} down
    read_only: false
    requires_sudo: true
profiles:
  verify_readonly:
    max_timeout_s: 30
    allow_sudo: [/usr/sbin/dmidecode, /usr/sbin/smartctl]
  extended_verify:
    max_timeout_s: 120
    allow_sudo: [/usr/sbin/dmidecode, /usr/sbin/smartctl, /usr/bin/ipmitool]
`

// Catalog parses CatalogYAML or fails the test
func Catalog(tb testing.TB) *catalog.Catalog {
	tb.Helper()
	cat, err := loader.ParseCatalog([]byte(CatalogYAML))
	if err != nil {
		tb.Fatalf("parse test catalog: %v", err)
	}
	return cat
}

// MemoryDSL is the single-step memory verification job used across tests
func MemoryDSL(jobID string) *model.ToDoDSL {
	return &model.ToDoDSL{
		JobID:   jobID,
		Profile: "verify_readonly",
		Target:  model.Target{Host: "h"},
		Context: map[string]interface{}{},
		Steps: []model.ToDoStep{{
			ID:        "s1",
			Action:    "read_meminfo",
			Args:      map[string]interface{}{},
			TimeoutS:  10,
			Parser:    "parse_meminfo",
			Validator: "total_mem_within_pct(16,2)",
		}},
	}
}
