package someip

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// OfferedService is a service this SdServer advertises.
type OfferedService struct {
	ServiceId    ServiceId
	InstanceId   InstanceId
	MajorVersion uint8
	MinorVersion uint32
	Endpoint     NetEndpoint
	Ttl          uint32
}

type subscriptionKey struct {
	Service    ServiceId
	Instance   InstanceId
	Eventgroup EventgroupId
	ClientAddr string
}

type subscription struct {
	clientAddr     net.Addr
	clientEndpoint NetEndpoint
	counter        uint8
	expiresAt      time.Time
}

// SdRequestKind discriminates the three requests an SdServer can report.
type SdRequestKind int

const (
	SdRequestFindService SdRequestKind = iota
	SdRequestSubscribe
	SdRequestUnsubscribe
)

// SdRequest is one request decoded from an incoming SD datagram.
type SdRequest struct {
	Kind         SdRequestKind
	ServiceId    ServiceId
	InstanceId   InstanceId
	MajorVersion uint8
	MinorVersion uint32
	EventgroupId EventgroupId
	Ttl          uint32
	Counter      uint8
	Endpoint     *NetEndpoint
	From         net.Addr
}

func (k SdRequestKind) String() string {
	switch k {
	case SdRequestFindService:
		return "FindService"
	case SdRequestSubscribe:
		return "Subscribe"
	case SdRequestUnsubscribe:
		return "Unsubscribe"
	default:
		return fmt.Sprintf("SdRequestKind(%d)", int(k))
	}
}

// SdServerConfig configures an SdServer's socket and offer cadence.
type SdServerConfig struct {
	BindAddr           *net.UDPAddr
	MulticastAddr      *net.UDPAddr
	MulticastInterface *net.Interface
	OfferInterval      time.Duration
}

// DefaultSdServerConfig returns the conventional wildcard-bind,
// well-known-multicast, 1-second-offer-interval configuration.
func DefaultSdServerConfig() SdServerConfig {
	return SdServerConfig{
		BindAddr:      &net.UDPAddr{IP: net.IPv4zero, Port: SdDefaultPort},
		MulticastAddr: &net.UDPAddr{IP: SdMulticastAddr, Port: SdDefaultPort},
		OfferInterval: time.Second,
	}
}

// SdServer advertises services and tracks eventgroup subscriptions over
// SOME/IP-SD multicast.
type SdServer struct {
	mu              sync.Mutex
	conn            *net.UDPConn
	multicastAddr   *net.UDPAddr
	offeredServices map[serviceKey]OfferedService
	subscriptions   map[subscriptionKey]subscription
	offerInterval   time.Duration
	lastOfferTime   time.Time
	pendingRequests *EventQueue[SdRequest]
}

// NewSdServer creates a server with DefaultSdServerConfig.
func NewSdServer() (*SdServer, error) {
	return NewSdServerWithConfig(DefaultSdServerConfig())
}

// NewSdServerWithConfig creates a server bound and joined to multicast per
// cfg.
func NewSdServerWithConfig(cfg SdServerConfig) (*SdServer, error) {
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
	return &SdServer{
		conn:            conn,
		multicastAddr:   cfg.MulticastAddr,
		offeredServices: make(map[serviceKey]OfferedService),
		subscriptions:   make(map[subscriptionKey]subscription),
		offerInterval:   cfg.OfferInterval,
		pendingRequests: NewEventQueue[SdRequest](sdEventQueueCapacity),
	}, nil
}

// LocalAddr returns the server's bound UDP address.
func (s *SdServer) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// OfferService registers a service and immediately announces it.
func (s *SdServer) OfferService(service OfferedService) error {
	s.mu.Lock()
	s.offeredServices[serviceKey{service.ServiceId, service.InstanceId}] = service
	s.mu.Unlock()

	msg := OfferServiceMessage(service.ServiceId, service.InstanceId, service.MajorVersion, service.MinorVersion, service.Ttl, service.Endpoint)
	return s.sendMulticast(msg)
}

// StopOfferService withdraws a service and announces the withdrawal.
func (s *SdServer) StopOfferService(service ServiceId, instance InstanceId) error {
	s.mu.Lock()
	key := serviceKey{service, instance}
	offered, ok := s.offeredServices[key]
	delete(s.offeredServices, key)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	msg := StopOfferServiceMessage(service, instance, offered.MajorVersion, offered.MinorVersion)
	return s.sendMulticast(msg)
}

// OfferedServices returns a snapshot of every currently offered service.
func (s *SdServer) OfferedServices() []OfferedService {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OfferedService, 0, len(s.offeredServices))
	for _, svc := range s.offeredServices {
		out = append(out, svc)
	}
	return out
}

// SendOffers announces every offered service and records the time it did
// so, for ShouldSendOffers to consult.
func (s *SdServer) SendOffers() error {
	s.mu.Lock()
	services := make([]OfferedService, 0, len(s.offeredServices))
	for _, svc := range s.offeredServices {
		services = append(services, svc)
	}
	s.mu.Unlock()

	for _, svc := range services {
		msg := OfferServiceMessage(svc.ServiceId, svc.InstanceId, svc.MajorVersion, svc.MinorVersion, svc.Ttl, svc.Endpoint)
		if err := s.sendMulticast(msg); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.lastOfferTime = time.Now()
	s.mu.Unlock()
	return nil
}

// ShouldSendOffers reports whether OfferInterval has elapsed since the
// last SendOffers call, or no offer has ever been sent.
func (s *SdServer) ShouldSendOffers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastOfferTime.IsZero() {
		return true
	}
	return time.Since(s.lastOfferTime) >= s.offerInterval
}

// AcceptSubscription records the subscription and sends the requesting
// client a positive SubscribeEventgroupAck.
func (s *SdServer) AcceptSubscription(service ServiceId, instance InstanceId, eventgroup EventgroupId, counter uint8, clientAddr net.Addr, clientEndpoint NetEndpoint, ttl uint32, multicastEndpoint *NetEndpoint) error {
	s.mu.Lock()
	key := subscriptionKey{service, instance, eventgroup, clientAddr.String()}
	s.subscriptions[key] = subscription{
		clientAddr:     clientAddr,
		clientEndpoint: clientEndpoint,
		counter:        counter,
		expiresAt:      time.Now().Add(time.Duration(ttl) * time.Second),
	}
	major := s.majorVersionFor(service, instance)
	s.mu.Unlock()

	msg := SubscribeEventgroupAckMessage(service, instance, major, eventgroup, ttl, counter, multicastEndpoint)
	return s.sendTo(msg, clientAddr)
}

// RejectSubscription sends the requesting client a SubscribeEventgroupNack.
func (s *SdServer) RejectSubscription(service ServiceId, instance InstanceId, eventgroup EventgroupId, counter uint8, clientAddr net.Addr) error {
	s.mu.Lock()
	major := s.majorVersionFor(service, instance)
	s.mu.Unlock()

	msg := SubscribeEventgroupNackMessage(service, instance, major, eventgroup, counter)
	return s.sendTo(msg, clientAddr)
}

// majorVersionFor must be called with mu held.
func (s *SdServer) majorVersionFor(service ServiceId, instance InstanceId) uint8 {
	if svc, ok := s.offeredServices[serviceKey{service, instance}]; ok {
		return svc.MajorVersion
	}
	return 0xFF
}

// GetSubscribers returns the endpoints of every live subscriber to an
// eventgroup.
func (s *SdServer) GetSubscribers(service ServiceId, instance InstanceId, eventgroup EventgroupId) []NetEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []NetEndpoint
	for key, sub := range s.subscriptions {
		if key.Service == service && key.Instance == instance && key.Eventgroup == eventgroup && now.Before(sub.expiresAt) {
			out = append(out, sub.clientEndpoint)
		}
	}
	return out
}

// CleanupExpired removes and returns the keys of every expired subscription.
func (s *SdServer) CleanupExpired() []subscriptionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var expired []subscriptionKey
	for key, sub := range s.subscriptions {
		if now.After(sub.expiresAt) || now.Equal(sub.expiresAt) {
			expired = append(expired, key)
			delete(s.subscriptions, key)
		}
	}
	return expired
}

// Close releases the underlying socket.
func (s *SdServer) Close() error {
	return s.conn.Close()
}

func (s *SdServer) sendMulticast(msg *SdMessage) error {
	return s.sendTo(msg, s.multicastAddr)
}

func (s *SdServer) sendTo(msg *SdMessage, addr net.Addr) error {
	someipMsg := msg.ToSomeIpMessage()
	_, err := s.conn.WriteTo(someipMsg.ToBytes(), addr)
	return err
}

// Poll returns the next queued request, reading and decoding one more
// datagram first if the queue is empty. It waits at most 10ms for a
// datagram and returns (nil, nil) if none arrives in that time.
func (s *SdServer) Poll() (*SdRequest, error) {
	s.mu.Lock()
	if req, ok := s.pendingRequests.Pop(); ok {
		s.mu.Unlock()
		return &req, nil
	}
	s.mu.Unlock()

	buf := make([]byte, 65535)
	_ = s.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	s.processDatagram(buf[:n], addr)

	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pendingRequests.Pop()
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// processDatagram decodes every entry in the datagram, answers FindService
// requests for services it offers inline, and queues one request per
// entry it recognizes.
func (s *SdServer) processDatagram(data []byte, src net.Addr) {
	if len(data) < HeaderSize {
		return
	}
	sdMsg, err := SdMessageFromBytes(data[HeaderSize:])
	if err != nil {
		log.Debugf("[SOMEIP-SD] discarding malformed SD datagram from %s: %v", src, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range sdMsg.Entries {
		switch {
		case entry.Service != nil && entry.Service.EntryType == EntryTypeFindService:
			se := entry.Service
			if offered, ok := s.offeredServices[serviceKey{se.ServiceId, se.InstanceId}]; ok {
				reply := OfferServiceMessage(offered.ServiceId, offered.InstanceId, offered.MajorVersion, offered.MinorVersion, offered.Ttl, offered.Endpoint)
				if err := s.sendTo(reply, src); err != nil {
					log.Warnf("[SOMEIP-SD] failed to answer find-service from %s: %v", src, err)
				}
			}
			if !s.pendingRequests.Push(SdRequest{
				Kind:         SdRequestFindService,
				ServiceId:    se.ServiceId,
				InstanceId:   se.InstanceId,
				MajorVersion: se.MajorVersion,
				MinorVersion: se.MinorVersion,
				From:         src,
			}) {
				sdQueueDroppedTotal.WithLabelValues("server", "FindService").Inc()
				log.Warn("[SOMEIP-SD] server request queue full, dropping FindService request")
			}

		case entry.Eventgroup != nil && entry.Eventgroup.EntryType == EntryTypeSubscribeEventgroup:
			ee := entry.Eventgroup
			if ee.Ttl == 0 {
				delete(s.subscriptions, subscriptionKey{ee.ServiceId, ee.InstanceId, ee.EventgroupId, src.String()})
				if !s.pendingRequests.Push(SdRequest{
					Kind:         SdRequestUnsubscribe,
					ServiceId:    ee.ServiceId,
					InstanceId:   ee.InstanceId,
					EventgroupId: ee.EventgroupId,
					From:         src,
				}) {
					sdQueueDroppedTotal.WithLabelValues("server", "Unsubscribe").Inc()
					log.Warn("[SOMEIP-SD] server request queue full, dropping Unsubscribe request")
				}
				continue
			}
			endpoints := sdMsg.EndpointsForEntry(entry)
			if len(endpoints) == 0 {
				continue
			}
			if !s.pendingRequests.Push(SdRequest{
				Kind:         SdRequestSubscribe,
				ServiceId:    ee.ServiceId,
				InstanceId:   ee.InstanceId,
				EventgroupId: ee.EventgroupId,
				MajorVersion: ee.MajorVersion,
				Ttl:          ee.Ttl,
				Counter:      ee.Counter,
				Endpoint:     &endpoints[0],
				From:         src,
			}) {
				sdQueueDroppedTotal.WithLabelValues("server", "Subscribe").Inc()
				log.Warn("[SOMEIP-SD] server request queue full, dropping Subscribe request")
			}
		}
	}
}
