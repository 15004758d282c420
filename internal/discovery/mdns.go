// ABOUTME: mDNS service discovery for pianoroom relays
// ABOUTME: Relays advertise themselves; players browse for a room by name
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/pkg/protocol"
)

// ServiceType is the mDNS service relays advertise
const ServiceType = "_pianoroom._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Logger      *zap.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
	logger  *zap.Logger
}

// ServerInfo describes a discovered relay
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
		logger:  logger.Named("discovery"),
	}
}

// Advertise announces this relay via mDNS until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + protocol.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.logger.Info("advertising",
		zap.String("name", m.config.ServiceName),
		zap.Int("port", m.config.Port),
		zap.String("type", ServiceType))

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for relays until Stop is called
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}
				server := &ServerInfo{
					Name: instanceName(entry.Name),
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}
				m.logger.Debug("discovered relay",
					zap.String("name", server.Name),
					zap.String("addr", server.Addr()))

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Entries = entries
		params.Timeout = 3 * time.Second
		params.DisableIPv6 = true
		if err := mdns.Query(params); err != nil {
			m.logger.Debug("query failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-m.ctx.Done():
			}
		}
		close(entries)
		<-done
	}
}

// Find browses until a relay named room shows up. An empty room takes the
// first relay found.
func (m *Manager) Find(ctx context.Context, room string) (*ServerInfo, error) {
	m.Browse()
	for {
		select {
		case s := <-m.servers:
			if room == "" || strings.EqualFold(s.Name, room) {
				return s, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("no relay found for %q: %w", room, ctx.Err())
		}
	}
}

// Servers returns the channel of discovered relays
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// instanceName strips the service and domain from an mDNS entry name,
// e.g. "Living\ Room._pianoroom._tcp.local." becomes "Living Room".
func instanceName(full string) string {
	name := full
	if i := strings.Index(name, "."+ServiceType); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, `\ `, " ")
}

func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
