package validator

import (
	"net/netip"
	"strings"
)

// MaxIPLength 设备地址列宽
const MaxIPLength = 45

// DeviceIP 规范化设备上报的地址; 去掉端口和 IPv6 zone, IPv4-mapped 地址还原为 IPv4, 无效时返回空串
func DeviceIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap().WithZone("").String()
	}

	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return ""
	}
	s := addr.Unmap().WithZone("").String()
	if len(s) > MaxIPLength {
		return ""
	}
	return s
}
