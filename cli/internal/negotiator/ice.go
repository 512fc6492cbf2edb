package negotiator

import (
	"log/slog"
	"net"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpdrop/cli/internal/config"
)

// Configuration builds the peer connection configuration: the configured
// STUN servers, TURN when present, and relay-only ICE when asked for or when
// the host looks like it sits behind a VPN or CGNAT.
func Configuration(cfg *config.Config) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// NewAPI returns a pion API whose internal logs go to logger. configure may
// adjust the setting engine, e.g. to run on a virtual network.
func NewAPI(logger *slog.Logger, configure ...func(*webrtc.SettingEngine)) *webrtc.API {
	se := webrtc.SettingEngine{
		LoggerFactory: NewLoggerFactory(logger),
	}
	for _, fn := range configure {
		fn(&se)
	}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	// Cloudflare WARP, Tailscale, and Carrier Grade NATs use 100.64.0.0/10.
	_, cgnatBlock, _ := net.ParseCIDR("100.64.0.0/10")

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		if tunnelInterface(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ip := addrIP(addr); ip != nil && cgnatBlock.Contains(ip) {
				return true
			}
		}
	}

	return false
}

var tunnelMarkers = []string{"tun", "tap", "wg", "ppp", "warp"}

func tunnelInterface(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range tunnelMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
