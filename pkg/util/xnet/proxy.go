package xnet

import (
	"net/netip"

	"go4.org/netipx"
)

// TrustedProxies 是可信代理的地址集合，nil 表示不信任任何代理。
type TrustedProxies struct {
	set *netipx.IPSet
}

// NewTrustedProxies 从范围描述构建可信代理集合。
func NewTrustedProxies(specs ...string) (*TrustedProxies, error) {
	set, err := ParseRanges(specs)
	if err != nil {
		return nil, err
	}
	return &TrustedProxies{set: set}, nil
}

// Contains 判断 addr 是否属于可信代理。
func (p *TrustedProxies) Contains(addr netip.Addr) bool {
	if p == nil || p.set == nil || !addr.IsValid() {
		return false
	}
	return p.set.Contains(addr.Unmap())
}

// ClientIP 根据对端地址与 X-Forwarded-For 链（客户端在左）还原客户端 IP。
//
// 对端不可信时返回对端；否则从右向左跳过可信代理，返回第一个不可信地址。
// 遇到无法解析的条目时停在最近一个可信跳；整条链都可信时返回最左端。
func (p *TrustedProxies) ClientIP(remoteAddr string, chain []string) string {
	remote, err := ParseHostAddr(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	if !p.Contains(remote) {
		return remote.String()
	}

	last := remote
	for i := len(chain) - 1; i >= 0; i-- {
		hop, err := ParseHostAddr(chain[i])
		if err != nil {
			return last.String()
		}
		if !p.Contains(hop) {
			return hop.String()
		}
		last = hop
	}
	return last.String()
}
