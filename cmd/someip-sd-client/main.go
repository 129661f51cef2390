// Command someip-sd-client looks up a SOME/IP service via SOME/IP-SD,
// subscribes to one of its eventgroups, and reports what it observes. Run
// someip-sd-server first, then this, the Go-native equivalent of the
// reference implementation's sd_client example.
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

	serviceId := flag.Uint("service", 0x1234, "service id to find")
	instanceId := flag.Uint("instance", 0x0001, "instance id to find")
	eventgroupId := flag.Uint("eventgroup", 0x0001, "eventgroup id to subscribe to")
	major := flag.Uint("major", 1, "major version to subscribe with")
	localEndpoint := flag.String("local", "127.0.0.1:30501", "udp endpoint this client listens on for events")
	findTimeout := flag.Duration("find-timeout", 5*time.Second, "how long to wait for the service to appear")
	subscribeTtl := flag.Uint("subscribe-ttl", 30, "subscription TTL in seconds")
	flag.Parse()

	cfg := someip.DefaultSdClientConfig()
	cfg.SubscribeTtl = uint32(*subscribeTtl)

	client, err := someip.NewSdClientWithConfig(cfg)
	if err != nil {
		log.Fatalf("starting SD client: %v", err)
	}
	defer client.Close()
	log.Infof("SD client listening on %s", client.LocalAddr())

	localAddr, err := net.ResolveUDPAddr("udp", *localEndpoint)
	if err != nil {
		log.Fatalf("resolving local endpoint %q: %v", *localEndpoint, err)
	}
	client.SetLocalEndpoint(someip.UdpEndpoint(localAddr.IP, uint16(localAddr.Port)))

	service := someip.ServiceId(*serviceId)
	instance := someip.InstanceId(*instanceId)
	eventgroup := someip.EventgroupId(*eventgroupId)

	log.Infof("searching for service 0x%04X instance 0x%04X...", *serviceId, *instanceId)
	info, err := client.WaitForService(service, instance, *findTimeout)
	if err != nil {
		log.Fatalf("find service: %v", err)
	}
	if info == nil {
		log.Info("service not found within timeout; is someip-sd-server running?")
		return
	}
	log.Infof("service found: major=%d minor=%d endpoints=%v ttl=%ds source=%s",
		info.MajorVersion, info.MinorVersion, info.Endpoints, info.RemainingTtl(), info.SourceAddr)

	log.Infof("subscribing to eventgroup 0x%04X...", *eventgroupId)
	if err := client.Subscribe(service, instance, eventgroup, uint8(*major)); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		event, err := client.Poll()
		if err != nil {
			log.Warnf("poll: %v", err)
		}
		if event != nil && reportEvent(event) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	log.Info("unsubscribing...")
	if err := client.Unsubscribe(service, instance, eventgroup, uint8(*major)); err != nil {
		log.Warnf("unsubscribe: %v", err)
	}

	log.Info("known services:")
	for _, s := range client.Services() {
		log.Infof("  service 0x%04X instance 0x%04X at %v", uint16(s.ServiceId), uint16(s.InstanceId), s.Endpoints)
	}
}

// reportEvent logs event and reports whether the subscription has reached
// a terminal outcome (acked or nacked).
func reportEvent(event *someip.SdEvent) bool {
	switch event.Kind {
	case someip.SdEventSubscriptionAck:
		log.Infof("subscription acknowledged: service 0x%04X eventgroup 0x%04X multicast=%v",
			uint16(event.ServiceId), uint16(event.EventgroupId), event.MulticastEndpoint)
		return true
	case someip.SdEventSubscriptionNack:
		log.Infof("subscription rejected: service 0x%04X eventgroup 0x%04X",
			uint16(event.ServiceId), uint16(event.EventgroupId))
		return true
	case someip.SdEventServiceAvailable:
		log.Infof("service update: 0x%04X", uint16(event.Service.ServiceId))
	case someip.SdEventServiceUnavailable:
		log.Infof("service unavailable: 0x%04X instance 0x%04X", uint16(event.ServiceId), uint16(event.InstanceId))
	}
	return false
}
