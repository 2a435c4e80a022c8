package pcap

// Session recording: panel traffic written as synthetic TCP/IPv4 frames

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tturner/evoprobe/internal/paradox/client"
)

// Default endpoints used when the real ones are unknown.
var (
	DefaultClientEndpoint = netip.MustParseAddrPort("10.0.0.1:50000")
	DefaultPanelEndpoint  = netip.MustParseAddrPort("10.0.0.2:10000")
)

// snapLen is the pcap snapshot length.
const snapLen = 65535

// Recorder writes both directions of one TCP stream to a pcap file. The
// frames carry correct sequence numbers so Wireshark can follow the stream.
type Recorder struct {
	mu        sync.Mutex
	writer    *pcapgo.Writer
	closer    io.Closer
	client    netip.AddrPort
	panel     netip.AddrPort
	clientSeq uint32
	panelSeq  uint32
	now       func() time.Time
}

// NewRecorder writes a pcap header to w and returns a recorder for the stream
// between clientEP and panelEP. If w is an io.Closer, Close closes it.
func NewRecorder(w io.Writer, clientEP, panelEP netip.AddrPort) (*Recorder, error) {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	r := &Recorder{
		writer:    writer,
		client:    clientEP,
		panel:     panelEP,
		clientSeq: 1,
		panelSeq:  1,
		now:       time.Now,
	}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r, nil
}

// CreateRecorder creates path and returns a recorder writing to it.
func CreateRecorder(path string, clientEP, panelEP netip.AddrPort) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap: %w", err)
	}
	r, err := NewRecorder(file, clientEP, panelEP)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// WriteClient records bytes sent by the client.
func (r *Recorder) WriteClient(data []byte) error {
	return r.write(data, true)
}

// WritePanel records bytes sent by the panel.
func (r *Recorder) WritePanel(data []byte) error {
	return r.write(data, false)
}

func (r *Recorder) write(data []byte, fromClient bool) error {
	if len(data) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	src, dst := r.client, r.panel
	seq, ack := &r.clientSeq, r.panelSeq
	if !fromClient {
		src, dst = r.panel, r.client
		seq, ack = &r.panelSeq, r.clientSeq
	}

	ethernet := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	if !fromClient {
		ethernet.SrcMAC, ethernet.DstMAC = ethernet.DstMAC, ethernet.SrcMAC
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src.Addr().AsSlice(),
		DstIP:    dst.Addr().AsSlice(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port()),
		DstPort: layers.TCPPort(dst.Port()),
		ACK:     true,
		PSH:     true,
		Seq:     *seq,
		Ack:     ack,
		Window:  0xFFFF,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("tcp checksum layer: %w", err)
	}

	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buffer, opts, ethernet, ip, tcp, gopacket.Payload(data)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	frame := buffer.Bytes()
	if err := r.writer.WritePacket(gopacket.CaptureInfo{
		Timestamp:     r.now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}, frame); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	*seq += uint32(len(data))
	return nil
}

// Close closes the underlying file, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// RecordingPort tees a client.Port into a Recorder.
type RecordingPort struct {
	inner    client.Port
	recorder *Recorder
}

var _ client.Port = (*RecordingPort)(nil)

// NewRecordingPort records all traffic passing through inner.
func NewRecordingPort(inner client.Port, recorder *Recorder) *RecordingPort {
	return &RecordingPort{inner: inner, recorder: recorder}
}

// Send records and forwards data. Recording failures fail the send.
func (p *RecordingPort) Send(ctx context.Context, data []byte) error {
	if err := p.inner.Send(ctx, data); err != nil {
		return err
	}
	if err := p.recorder.WriteClient(data); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}

// ReceiveRaw reads from the inner port and records what arrived.
func (p *RecordingPort) ReceiveRaw(ctx context.Context, max int) ([]byte, error) {
	data, err := p.inner.ReceiveRaw(ctx, max)
	if err != nil {
		return nil, err
	}
	if err := p.recorder.WritePanel(data); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return data, nil
}

// DataAvailable forwards to the inner port.
func (p *RecordingPort) DataAvailable() bool {
	return p.inner.DataAvailable()
}

// Close closes the inner port and the recording.
func (p *RecordingPort) Close() error {
	err := p.inner.Close()
	if rerr := p.recorder.Close(); err == nil {
		err = rerr
	}
	return err
}

// ParseEndpoint parses "host:port" into an IPv4 endpoint, using fallback
// when s is not a literal IPv4 address (e.g. a host name).
func ParseEndpoint(s string, fallback netip.AddrPort) netip.AddrPort {
	ap, err := netip.ParseAddrPort(s)
	if err != nil || !ap.Addr().Unmap().Is4() {
		return fallback
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
