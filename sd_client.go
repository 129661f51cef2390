package someip

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ServiceInfo describes a service offer currently known to an SdClient.
type ServiceInfo struct {
	ServiceId    ServiceId
	InstanceId   InstanceId
	MajorVersion uint8
	MinorVersion uint32
	Endpoints    []NetEndpoint
	ExpiresAt    time.Time
	SourceAddr   net.Addr
}

// IsExpired reports whether the offer's TTL has elapsed.
func (s ServiceInfo) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RemainingTtl returns the offer's remaining lifetime in seconds, floored
// at zero.
func (s ServiceInfo) RemainingTtl() uint32 {
	remaining := time.Until(s.ExpiresAt)
	if remaining <= 0 {
		return 0
	}
	return uint32(remaining / time.Second)
}

// SdEventKind discriminates the four events an SdClient can report.
type SdEventKind int

const (
	SdEventServiceAvailable SdEventKind = iota
	SdEventServiceUnavailable
	SdEventSubscriptionAck
	SdEventSubscriptionNack
)

// SdEvent is one notification the client's Poll loop surfaces. Which
// fields are meaningful depends on Kind.
type SdEvent struct {
	Kind              SdEventKind
	Service           ServiceInfo  // ServiceAvailable
	ServiceId         ServiceId    // ServiceUnavailable, SubscriptionAck/Nack
	InstanceId        InstanceId
	EventgroupId      EventgroupId // SubscriptionAck/Nack
	MulticastEndpoint *NetEndpoint // SubscriptionAck, if the ack carried one
}

type serviceKey struct {
	Service  ServiceId
	Instance InstanceId
}

// SdClientConfig configures an SdClient's socket and default TTLs.
// SubscribeTtl is applied to Subscribe messages; FindTtl is not read by
// SdClient, whose FindService messages always carry MaxTtl.
type SdClientConfig struct {
	BindAddr           *net.UDPAddr
	MulticastAddr      *net.UDPAddr
	MulticastInterface *net.Interface
	FindTtl            uint32
	SubscribeTtl       uint32
}

// DefaultSdClientConfig returns the conventional wildcard-bind,
// well-known-multicast configuration.
func DefaultSdClientConfig() SdClientConfig {
	return SdClientConfig{
		BindAddr:      &net.UDPAddr{IP: net.IPv4zero, Port: SdDefaultPort},
		MulticastAddr: &net.UDPAddr{IP: SdMulticastAddr, Port: SdDefaultPort},
		FindTtl:       MaxTtl,
		SubscribeTtl:  MaxTtl,
	}
}

// sdEventQueueCapacity bounds how many decoded events an SdClient holds
// before Poll has drained them; cyclic offers arrive far more often than a
// typical application calls Poll.
const sdEventQueueCapacity = 256

// SdClient discovers services and manages eventgroup subscriptions over
// SOME/IP-SD multicast.
type SdClient struct {
	mu            sync.Mutex
	conn          *net.UDPConn
	multicastAddr *net.UDPAddr
	services      map[serviceKey]ServiceInfo
	subscribeTtl  uint32
	localEndpoint *NetEndpoint
	pendingEvents *EventQueue[SdEvent]
}

// NewSdClient creates a client with DefaultSdClientConfig.
func NewSdClient() (*SdClient, error) {
	return NewSdClientWithConfig(DefaultSdClientConfig())
}

// NewSdClientWithConfig creates a client bound and joined to multicast per
// cfg.
func NewSdClientWithConfig(cfg SdClientConfig) (*SdClient, error) {
	var conn *net.UDPConn
	var err error
	if cfg.MulticastAddr != nil {
		conn, err = net.ListenMulticastUDP("udp", cfg.MulticastInterface, &net.UDPAddr{IP: cfg.MulticastAddr.IP, Port: cfg.BindAddr.Port})
	} else {
		conn, err = net.ListenUDP("udp", cfg.BindAddr)
	}
	if err != nil {
		return nil, err
	}
	return &SdClient{
		conn:          conn,
		multicastAddr: cfg.MulticastAddr,
		services:      make(map[serviceKey]ServiceInfo),
		subscribeTtl:  cfg.SubscribeTtl,
		pendingEvents: NewEventQueue[SdEvent](sdEventQueueCapacity),
	}, nil
}

// SetLocalEndpoint sets the endpoint advertised in Subscribe messages.
func (c *SdClient) SetLocalEndpoint(ep NetEndpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localEndpoint = &ep
}

// LocalAddr returns the client's bound UDP address.
func (c *SdClient) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// FindService sends a FindService message for any version of the service.
func (c *SdClient) FindService(service ServiceId, instance InstanceId) error {
	return c.FindServiceVersion(service, instance, 0xFF, 0xFFFFFFFF)
}

// FindServiceVersion sends a FindService message for a specific version.
func (c *SdClient) FindServiceVersion(service ServiceId, instance InstanceId, major uint8, minor uint32) error {
	msg := FindServiceMessage(service, instance, major, minor)
	return c.sendMessage(msg)
}

// Subscribe sends a SubscribeEventgroup message. SetLocalEndpoint must be
// called first.
func (c *SdClient) Subscribe(service ServiceId, instance InstanceId, eventgroup EventgroupId, major uint8) error {
	c.mu.Lock()
	ep := c.localEndpoint
	ttl := c.subscribeTtl
	c.mu.Unlock()
	if ep == nil {
		return ErrLocalEndpointUnset
	}
	msg := SubscribeEventgroupMessage(service, instance, major, eventgroup, ttl, *ep)
	return c.sendMessage(msg)
}

// Unsubscribe sends an unsubscribe (TTL=0) message for the eventgroup.
func (c *SdClient) Unsubscribe(service ServiceId, instance InstanceId, eventgroup EventgroupId, major uint8) error {
	msg := StopSubscribeEventgroupMessage(service, instance, major, eventgroup)
	return c.sendMessage(msg)
}

func (c *SdClient) sendMessage(msg *SdMessage) error {
	someipMsg := msg.ToSomeIpMessage()
	_, err := c.conn.WriteToUDP(someipMsg.ToBytes(), c.multicastAddr)
	return err
}

// Poll returns the next queued event, reading and decoding one more
// datagram first if the queue is empty. It waits at most 10ms for a
// datagram and returns (nil, nil) if none arrives in that time.
func (c *SdClient) Poll() (*SdEvent, error) {
	c.mu.Lock()
	if ev, ok := c.pendingEvents.Pop(); ok {
		c.mu.Unlock()
		return &ev, nil
	}
	c.mu.Unlock()

	buf := make([]byte, 65535)
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	n, addr, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	c.processDatagram(buf[:n], addr)

	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.pendingEvents.Pop()
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// WaitForService blocks (polling every 10ms) until the service becomes
// known or timeout elapses.
func (c *SdClient) WaitForService(service ServiceId, instance InstanceId, timeout time.Duration) (*ServiceInfo, error) {
	deadline := time.Now().Add(timeout)

	if info, ok := c.GetService(service, instance); ok && !info.IsExpired() {
		return &info, nil
	}

	if err := c.FindService(service, instance); err != nil {
		return nil, err
	}

	for time.Now().Before(deadline) {
		ev, err := c.Poll()
		if err != nil {
			return nil, err
		}
		if ev != nil && ev.Kind == SdEventServiceAvailable {
			info := ev.Service
			if info.ServiceId == service && (instance == InstanceIdAny || info.InstanceId == instance) {
				return &info, nil
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil, nil
}

// GetService looks up a known service offer.
func (c *SdClient) GetService(service ServiceId, instance InstanceId) (ServiceInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.services[serviceKey{service, instance}]
	return info, ok
}

// Services returns a snapshot of every currently known service offer.
func (c *SdClient) Services() []ServiceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ServiceInfo, 0, len(c.services))
	for _, info := range c.services {
		out = append(out, info)
	}
	return out
}

// CleanupExpired removes and returns the keys of every expired offer.
func (c *SdClient) CleanupExpired() []struct {
	ServiceId  ServiceId
	InstanceId InstanceId
} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expired []struct {
		ServiceId  ServiceId
		InstanceId InstanceId
	}
	for key, info := range c.services {
		if info.IsExpired() {
			expired = append(expired, struct {
				ServiceId  ServiceId
				InstanceId InstanceId
			}{key.Service, key.Instance})
			delete(c.services, key)
		}
	}
	return expired
}

// Close releases the underlying socket.
func (c *SdClient) Close() error {
	return c.conn.Close()
}

// processDatagram decodes every entry in the datagram and queues one
// event per entry it recognizes, rather than stopping at the first match.
func (c *SdClient) processDatagram(data []byte, src net.Addr) {
	if len(data) < HeaderSize {
		return
	}
	sdMsg, err := SdMessageFromBytes(data[HeaderSize:])
	if err != nil {
		log.Debugf("[SOMEIP-SD] discarding malformed SD datagram from %s: %v", src, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range sdMsg.Entries {
		switch {
		case entry.Service != nil && entry.Service.EntryType == EntryTypeOfferService:
			se := entry.Service
			key := serviceKey{se.ServiceId, se.InstanceId}
			if se.Ttl == 0 {
				delete(c.services, key)
				if !c.pendingEvents.Push(SdEvent{
					Kind:       SdEventServiceUnavailable,
					ServiceId:  se.ServiceId,
					InstanceId: se.InstanceId,
				}) {
					sdQueueDroppedTotal.WithLabelValues("client", "ServiceUnavailable").Inc()
					log.Warn("[SOMEIP-SD] client event queue full, dropping ServiceUnavailable event")
				}
				continue
			}
			info := ServiceInfo{
				ServiceId:    se.ServiceId,
				InstanceId:   se.InstanceId,
				MajorVersion: se.MajorVersion,
				MinorVersion: se.MinorVersion,
				Endpoints:    sdMsg.EndpointsForEntry(entry),
				ExpiresAt:    time.Now().Add(time.Duration(se.Ttl) * time.Second),
				SourceAddr:   src,
			}
			c.services[key] = info
			if !c.pendingEvents.Push(SdEvent{Kind: SdEventServiceAvailable, Service: info}) {
				sdQueueDroppedTotal.WithLabelValues("client", "ServiceAvailable").Inc()
				log.Warn("[SOMEIP-SD] client event queue full, dropping ServiceAvailable event")
			}

		case entry.Eventgroup != nil && entry.Eventgroup.EntryType == EntryTypeSubscribeEventgroupAck:
			ee := entry.Eventgroup
			if ee.Ttl == 0 {
				if !c.pendingEvents.Push(SdEvent{
					Kind:         SdEventSubscriptionNack,
					ServiceId:    ee.ServiceId,
					InstanceId:   ee.InstanceId,
					EventgroupId: ee.EventgroupId,
				}) {
					sdQueueDroppedTotal.WithLabelValues("client", "SubscriptionNack").Inc()
					log.Warn("[SOMEIP-SD] client event queue full, dropping SubscriptionNack event")
				}
				continue
			}
			endpoints := sdMsg.EndpointsForEntry(entry)
			var mc *NetEndpoint
			if len(endpoints) > 0 {
				mc = &endpoints[0]
			}
			if !c.pendingEvents.Push(SdEvent{
				Kind:              SdEventSubscriptionAck,
				ServiceId:         ee.ServiceId,
				InstanceId:        ee.InstanceId,
				EventgroupId:      ee.EventgroupId,
				MulticastEndpoint: mc,
			}) {
				sdQueueDroppedTotal.WithLabelValues("client", "SubscriptionAck").Inc()
				log.Warn("[SOMEIP-SD] client event queue full, dropping SubscriptionAck event")
			}
		}
	}
}

func (k SdEventKind) String() string {
	switch k {
	case SdEventServiceAvailable:
		return "ServiceAvailable"
	case SdEventServiceUnavailable:
		return "ServiceUnavailable"
	case SdEventSubscriptionAck:
		return "SubscriptionAck"
	case SdEventSubscriptionNack:
		return "SubscriptionNack"
	default:
		return fmt.Sprintf("SdEventKind(%d)", int(k))
	}
}
