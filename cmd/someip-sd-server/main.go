// Command someip-sd-server offers a single SOME/IP service over SOME/IP-SD
// and logs FindService/Subscribe/Unsubscribe requests as they arrive, the
// Go-native equivalent of the reference implementation's sd_server example.
package main

import (
	"flag"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gosomeip/someip"
)

func main() {
	log.SetLevel(log.InfoLevel)

	serviceId := flag.Uint("service", 0x1234, "service id to offer")
	instanceId := flag.Uint("instance", 0x0001, "instance id to offer")
	major := flag.Uint("major", 1, "major version")
	minor := flag.Uint("minor", 0, "minor version")
	endpointAddr := flag.String("endpoint", "127.0.0.1:30500", "tcp endpoint to advertise for this service")
	ttl := flag.Uint("ttl", 10, "offer TTL in seconds")
	flag.Parse()

	server, err := someip.NewSdServer()
	if err != nil {
		log.Fatalf("starting SD server: %v", err)
	}
	defer server.Close()
	log.Infof("SD server listening on %s", server.LocalAddr())

	tcpAddr, err := net.ResolveTCPAddr("tcp", *endpointAddr)
	if err != nil {
		log.Fatalf("resolving endpoint %q: %v", *endpointAddr, err)
	}

	service := someip.OfferedService{
		ServiceId:    someip.ServiceId(*serviceId),
		InstanceId:   someip.InstanceId(*instanceId),
		MajorVersion: uint8(*major),
		MinorVersion: uint32(*minor),
		Endpoint:     someip.TcpEndpoint(tcpAddr.IP, uint16(tcpAddr.Port)),
		Ttl:          uint32(*ttl),
	}
	if err := server.OfferService(service); err != nil {
		log.Fatalf("offering service: %v", err)
	}
	log.Infof("offering service 0x%04X instance 0x%04X on tcp://%s", *serviceId, *instanceId, *endpointAddr)

	for {
		if server.ShouldSendOffers() {
			if err := server.SendOffers(); err != nil {
				log.Warnf("sending periodic offers: %v", err)
			} else {
				log.Debug("sent periodic offer announcement")
			}
		}

		req, err := server.Poll()
		if err != nil {
			log.Warnf("poll: %v", err)
		}
		if req != nil {
			handleRequest(server, req)
		}

		for _, key := range server.CleanupExpired() {
			log.Infof("subscription expired: service 0x%04X instance 0x%04X eventgroup 0x%04X",
				uint16(key.Service), uint16(key.Instance), uint16(key.Eventgroup))
		}

		time.Sleep(100 * time.Millisecond)
	}
}

func handleRequest(server *someip.SdServer, req *someip.SdRequest) {
	switch req.Kind {
	case someip.SdRequestFindService:
		log.Infof("FindService for service 0x%04X instance 0x%04X from %s",
			uint16(req.ServiceId), uint16(req.InstanceId), req.From)

	case someip.SdRequestSubscribe:
		log.Infof("Subscribe for service 0x%04X instance 0x%04X eventgroup 0x%04X from %s",
			uint16(req.ServiceId), uint16(req.InstanceId), uint16(req.EventgroupId), req.From)
		if req.Endpoint == nil {
			log.Warn("subscribe request carried no endpoint, rejecting")
			_ = server.RejectSubscription(req.ServiceId, req.InstanceId, req.EventgroupId, req.Counter, req.From)
			return
		}
		err := server.AcceptSubscription(req.ServiceId, req.InstanceId, req.EventgroupId, req.Counter,
			req.From, *req.Endpoint, req.Ttl, nil)
		if err != nil {
			log.Warnf("accepting subscription: %v", err)
			return
		}
		log.Info("subscription accepted")

	case someip.SdRequestUnsubscribe:
		log.Infof("Unsubscribe for service 0x%04X instance 0x%04X eventgroup 0x%04X from %s",
			uint16(req.ServiceId), uint16(req.InstanceId), uint16(req.EventgroupId), req.From)
	}
}
