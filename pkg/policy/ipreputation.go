package policy

import (
	"strings"

	"github.com/vantagesec/gatewarden/pkg/config"
	"github.com/vantagesec/gatewarden/pkg/secerrors"
	"github.com/vantagesec/gatewarden/pkg/types"
)

// proxyIndicatorHeaders mark traffic that has passed through an explicit
// forward proxy or anonymizer.
var proxyIndicatorHeaders = []string{
	"Via",
	"X-Proxy-Authorization",
	"Proxy-Authorization",
	"X-Anonymizer-Version",
}

// IPReputationPolicy applies the blacklist/whitelist and the header-based
// VPN and proxy heuristics.
type IPReputationPolicy struct {
	cfg         config.IPReputationConfig
	blacklisted map[string]struct{}
	whitelisted map[string]struct{}
}

func NewIPReputationPolicy(cfg config.IPReputationConfig) *IPReputationPolicy {
	blacklisted := make(map[string]struct{}, len(cfg.BlacklistedIPs))
	for _, ip := range cfg.BlacklistedIPs {
		blacklisted[ip] = struct{}{}
	}
	whitelisted := make(map[string]struct{}, len(cfg.WhitelistedIPs))
	for _, ip := range cfg.WhitelistedIPs {
		whitelisted[ip] = struct{}{}
	}
	return &IPReputationPolicy{cfg: cfg, blacklisted: blacklisted, whitelisted: whitelisted}
}

// Check evaluates the client IP. Whitelisted addresses bypass every other
// reputation check, blacklisted ones are rejected outright, and the
// remainder are screened for VPN and proxy indicators unless those are
// explicitly allowed.
func (p *IPReputationPolicy) Check(req *types.RequestContext, secCtx *types.SecurityContext) error {
	if !p.cfg.Enabled {
		return nil
	}

	if _, ok := p.whitelisted[secCtx.ClientIP]; ok {
		return nil
	}
	if _, ok := p.blacklisted[secCtx.ClientIP]; ok {
		secCtx.AddThreatScore(80)
		return &secerrors.IpBlocked{Reason: "ip address is blacklisted"}
	}

	if !p.cfg.AllowVPN && vpnIndicated(req) {
		secCtx.AddThreatScore(25)
		return &secerrors.VpnDetected{Reason: "vpn/proxy detected, not allowed"}
	}
	if !p.cfg.AllowProxy && proxyIndicated(req) {
		secCtx.AddThreatScore(20)
		return &secerrors.ProxyDetected{Reason: "proxy detected, not allowed"}
	}
	return nil
}

// vpnIndicated treats a chained X-Forwarded-For (repeated header lines, or
// more than two hops in one value) as the signature of anonymizing relays. A
// single forwarding hop is normal behind a load balancer and is not flagged.
func vpnIndicated(req *types.RequestContext) bool {
	values := headerValues(req, "X-Forwarded-For")
	if len(values) > 1 {
		return true
	}
	for _, value := range values {
		if strings.Count(value, ",") > 1 {
			return true
		}
	}
	return false
}

func proxyIndicated(req *types.RequestContext) bool {
	for _, header := range proxyIndicatorHeaders {
		if req.HasHeader(header) {
			return true
		}
	}
	return false
}

func headerValues(req *types.RequestContext, name string) []string {
	if vals, ok := req.Headers[name]; ok {
		return vals
	}
	for key, vals := range req.Headers {
		if strings.EqualFold(key, name) {
			return vals
		}
	}
	return nil
}
