package sync

import (
	"sync"
	"time"
)

// Transport is the kind of link a device is on
type Transport string

const (
	TransportWiFi     Transport = "wifi"
	TransportCellular Transport = "cellular"
	TransportEthernet Transport = "ethernet"
	TransportUnknown  Transport = "unknown"
	TransportNone     Transport = "none"
)

// NetworkInfo is a connectivity snapshot
type NetworkInfo struct {
	IsConnected bool      `json:"is_connected"`
	Transport   Transport `json:"transport"`
	ChangedAt   time.Time `json:"changed_at"`
}

// Network holds the current NetworkInfo. It has a single writer (the
// Prober or a platform adapter) and any number of readers.
type Network struct {
	mu   sync.RWMutex
	info NetworkInfo
}

// NewNetwork starts out disconnected
func NewNetwork() *Network {
	return &Network{info: NetworkInfo{Transport: TransportNone}}
}

// Current returns the latest snapshot
func (n *Network) Current() NetworkInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.info
}

// IsConnected reports the latest connectivity
func (n *Network) IsConnected() bool {
	return n.Current().IsConnected
}

// Set records a new snapshot and returns the previous one. ChangedAt only
// moves when connectivity or transport actually change.
func (n *Network) Set(connected bool, transport Transport, at time.Time) (prev, cur NetworkInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev = n.info
	if prev.IsConnected != connected || prev.Transport != transport {
		n.info = NetworkInfo{IsConnected: connected, Transport: transport, ChangedAt: at}
	}
	return prev, n.info
}
