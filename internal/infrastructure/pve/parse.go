package pve

import (
	"fmt"
	"net/netip"
	"strings"
)

// ConfigPath is where the node keeps the VM config. Not checked for existence.
func ConfigPath(node string, vmid int) string {
	return fmt.Sprintf("/etc/pve/nodes/%s/qemu-server/%d.conf", node, vmid)
}

// bridgeFromNet reads bridge=... out of a netN descriptor such as
// "virtio=BC:24:11:2A:9C:01,bridge=vmbr0,firewall=1".
func bridgeFromNet(desc string) (string, bool) {
	for _, kv := range strings.Split(desc, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if ok && k == "bridge" && v != "" {
			return v, true
		}
	}
	return "", false
}

// storageFromConfig returns the storage id of the boot disk, e.g. "local-lvm"
// for scsi0: "local-lvm:vm-100-disk-0,size=32G".
func storageFromConfig(cfg QemuConfig) (string, bool) {
	disk, ok := bootDiskKey(cfg)
	if !ok {
		return "", false
	}
	val, ok := cfg.String(disk)
	if !ok {
		return "", false
	}
	storage, _, found := strings.Cut(val, ":")
	if !found || storage == "" {
		return "", false
	}
	return storage, true
}

// bootDiskKey prefers the legacy bootdisk key, then the first non-cdrom disk
// of boot: order=...
func bootDiskKey(cfg QemuConfig) (string, bool) {
	if key, ok := cfg.String("bootdisk"); ok && key != "" {
		return key, true
	}
	boot, ok := cfg.String("boot")
	if !ok {
		return "", false
	}
	for _, kv := range strings.Split(boot, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok || k != "order" {
			continue
		}
		for _, dev := range strings.Split(v, ";") {
			if !isDiskKey(dev) {
				continue
			}
			val, present := cfg.String(dev)
			if !present || strings.Contains(val, "media=cdrom") {
				continue
			}
			return dev, true
		}
	}
	return "", false
}

func isDiskKey(k string) bool {
	for _, bus := range []string{"scsi", "virtio", "sata", "ide"} {
		if strings.HasPrefix(k, bus) {
			return true
		}
	}
	return false
}

// firstIPv4 walks interfaces in order and returns the first non-loopback IPv4.
func firstIPv4(ifaces []GuestInterface) (string, bool) {
	for _, iface := range ifaces {
		for _, addr := range iface.IPAddresses {
			if !strings.EqualFold(addr.Type, "ipv4") {
				continue
			}
			ip, err := netip.ParseAddr(strings.TrimSpace(addr.Address))
			if err != nil || !ip.Is4() || ip.IsLoopback() {
				continue
			}
			return ip.String(), true
		}
	}
	return "", false
}
