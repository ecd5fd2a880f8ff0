package scanner

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// DefaultEchoTimeout bounds how long ICMPPinger waits for a reply.
const DefaultEchoTimeout = 2 * time.Second

var echoPayload = []byte("hostsweep-echo")

// ICMPPinger sends one ICMPv4 echo request over a raw socket and waits for the matching reply.
// Raw sockets need root or CAP_NET_RAW; without them every host reports offline.
type ICMPPinger struct {
	Timeout time.Duration
	id      uint16
	seq     atomic.Uint32
}

// NewICMPPinger returns a native echo pinger. A non-positive timeout means DefaultEchoTimeout.
func NewICMPPinger(timeout time.Duration) *ICMPPinger {
	if timeout <= 0 {
		timeout = DefaultEchoTimeout
	}
	return &ICMPPinger{Timeout: timeout, id: uint16(os.Getpid() & 0xffff)}
}

// PingOnce reports whether host answered an echo request before the timeout.
func (p *ICMPPinger) PingOnce(ctx context.Context, host string) bool {
	dst := resolveIPv4(ctx, host)
	if dst == nil {
		return false
	}

	conn, err := net.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return false
	}
	defer conn.Close()

	deadline := time.Now().Add(p.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false
	}

	seq := uint16(p.seq.Add(1))
	request, err := encodeEcho(layers.ICMPv4TypeEchoRequest, p.id, seq, echoPayload)
	if err != nil {
		return false
	}
	if _, err := conn.WriteTo(request, &net.IPAddr{IP: dst}); err != nil {
		return false
	}

	buffer := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return false
		}
		n, peer, err := conn.ReadFrom(buffer)
		if err != nil {
			return false
		}
		addr, ok := peer.(*net.IPAddr)
		if !ok || !addr.IP.Equal(dst) {
			continue
		}
		if id, replySeq, ok := decodeEchoReply(buffer[:n]); ok && id == p.id && replySeq == seq {
			return true
		}
	}
}

func resolveIPv4(ctx context.Context, host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// encodeEcho serializes an ICMPv4 echo message with its checksum filled in.
func encodeEcho(typ uint8, id, seq uint16, payload []byte) ([]byte, error) {
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, 0),
		Id:       id,
		Seq:      seq,
	}
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buffer, opts, icmp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// decodeEchoReply parses an ICMPv4 message (IP header already stripped) and returns its
// identifier and sequence number when it is an echo reply.
func decodeEchoReply(data []byte) (uint16, uint16, bool) {
	packet := gopacket.NewPacket(data, layers.LayerTypeICMPv4, gopacket.NoCopy)
	icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	if !ok {
		return 0, 0, false
	}
	if icmp.TypeCode.Type() != layers.ICMPv4TypeEchoReply {
		return 0, 0, false
	}
	return icmp.Id, icmp.Seq, true
}
