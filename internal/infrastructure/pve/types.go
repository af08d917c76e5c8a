// Package pve talks to the Proxmox VE management API (api2/json).
package pve

import (
	"encoding/json"
	"strconv"
	"strings"
)

// QemuSummary is a row of GET /nodes/{node}/qemu, and also the shape of
// GET /nodes/{node}/qemu/{vmid}/status/current.
type QemuSummary struct {
	VMID      flexInt `json:"vmid"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`    // coarse signal
	QMPStatus string  `json:"qmpstatus"` // fine signal, absent on some rows

	CPUs float64 `json:"cpus"`
	// CPU is a fraction (0..1).
	CPU float64 `json:"cpu"`

	Mem     float64 `json:"mem"`
	MaxMem  float64 `json:"maxmem"`
	Disk    float64 `json:"disk"`
	MaxDisk float64 `json:"maxdisk"`
	Uptime  float64 `json:"uptime"`
}

// QemuConfig is GET /nodes/{node}/qemu/{vmid}/config. Keys depend on the VM
// (net0, scsi0, virtio1, ...) so it stays a loose map.
type QemuConfig map[string]json.RawMessage

// String returns a string-valued key; numbers are rendered as text.
func (c QemuConfig) String(key string) (string, bool) {
	raw, ok := c[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// GuestInterface is one entry of the guest agent network-get-interfaces result.
type GuestInterface struct {
	Name            string           `json:"name"`
	HardwareAddress string           `json:"hardware-address"`
	IPAddresses     []GuestIPAddress `json:"ip-addresses"`
}

type GuestIPAddress struct {
	Address string `json:"ip-address"`
	Type    string `json:"ip-address-type"` // ipv4 / ipv6
	Prefix  int    `json:"prefix"`
}

// flexInt accepts 100 and "100".
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int(f)
	}
	*n = flexInt(v)
	return nil
}
