package tool

import (
	"fmt"
	"net"
	"slices"
)

// skipInterface filters interfaces a phone on the LAN cannot reach.
func skipInterface(iface *net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 {
		return true
	}
	if iface.Flags&net.FlagLoopback != 0 {
		return true
	}
	if iface.Flags&net.FlagPointToPoint != 0 {
		return true // utun / tun / vpn
	}
	return false
}

// LocalIPv4s returns the sorted non-loopback IPv4 addresses of reachable interfaces.
func LocalIPv4s() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var result []string
	for i := range ifaces {
		if skipInterface(&ifaces[i]) {
			continue
		}
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if ipv4 := ipnet.IP.To4(); ipv4 != nil {
				result = append(result, ipv4.String())
			}
		}
	}
	slices.Sort(result)
	return slices.Compact(result)
}

// UploadURLs lists the addresses the upload page can be opened on.
func UploadURLs(protocol string, port int) []string {
	ips := LocalIPv4s()
	urls := make([]string, 0, len(ips))
	for _, ip := range ips {
		urls = append(urls, fmt.Sprintf("%s://%s:%d/", protocol, ip, port))
	}
	return urls
}
