package panelsim

import (
	"bytes"

	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// flagsRelay marks panel traffic relayed by the module.
const flagsRelay byte = 0x08

// Login confirmation results (body byte 0).
const (
	confirmAccepted byte = 0x10
	confirmDeclined byte = 0x70
)

// Identity reported in the serial-init response.
var (
	simModuleAddress = byte(0x00)
	simProductInfo   = [4]byte{0x05, 0x07, 0x32, 0x01} // product, version, revision, software ID
	simModuleID      = [2]byte{0x00, 0x01}
	simEVOSection    = [9]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
)

// Serial-init response layout.
const (
	serialInitModuleAddress = 1
	serialInitProductInfo   = 4
	serialInitModuleID      = 8
	serialInitSerialNumber  = 17
	serialInitEVOSection    = 21
	panelTypeOffset         = 28
	panelTypeLength         = 8
)

// Logout request body length and marker.
const (
	logoutBodySize      = 7
	logoutMarker   byte = 0x07
)

// connState tracks one client's progress through the handshake.
type connState struct {
	remote        string
	authenticated bool
	loggedIn      bool
	loggedOut     bool
}

// dispatch answers one request. A nil result means no reply is sent.
func (s *Server) dispatch(sess *connState, pkt protocol.Packet) []byte {
	h := protocol.DecodeHeader(pkt.Header)
	switch h.MessageType {
	case protocol.MessageTypeModule:
		return s.handleModule(sess, h, pkt.Body)
	case protocol.MessageTypePassthrough:
		return s.handlePanel(sess, pkt.Body)
	default:
		s.logger.Debug("%s: ignoring message type 0x%02X", sess.remote, h.MessageType)
		return nil
	}
}

func (s *Server) handleModule(sess *connState, h protocol.Header, body []byte) []byte {
	switch h.Command {
	case protocol.ModuleCommandLogin:
		flags := protocol.FlagsRequest
		if string(body) == s.image.Password {
			sess.authenticated = true
			flags = protocol.FlagsLoginAck
		} else {
			s.logger.Info("%s: module login rejected", sess.remote)
		}
		return moduleReply(flags, h.Command)
	case protocol.ModuleCommandProbeF2, protocol.ModuleCommandProbeF3, protocol.ModuleCommandProbeF8:
		return ackReply()
	default:
		s.logger.Debug("%s: unknown module command 0x%02X", sess.remote, h.Command)
		return nil
	}
}

func (s *Server) handlePanel(sess *connState, body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	switch body[0] {
	case protocol.OpcodeInitComm:
		return s.initCommReply()
	case protocol.OpcodeSerialInit:
		return s.serialInitReply()
	case protocol.OpcodeReadMemory:
		return s.readMemoryReply(sess, body)
	case protocol.OpcodeInitialize:
		if len(body) == logoutBodySize && body[1] == logoutMarker {
			sess.loggedIn = false
			sess.loggedOut = true
			return nil
		}
		return s.confirmReply(sess, body)
	default:
		s.logger.Debug("%s: unknown panel opcode 0x%02X", sess.remote, body[0])
		return nil
	}
}

func moduleReply(flags, command byte) []byte {
	h := protocol.Header{
		Length:      1,
		MessageType: protocol.MessageTypeModule,
		Flags:       flags,
		Command:     command,
		Mode:        protocol.ModeSetup,
	}
	return protocol.Encode(h, protocol.PadRight([]byte{0x00}, protocol.PasswordBlockSize, protocol.FillByte))
}

func ackReply() []byte {
	return panelReply(protocol.FlagsLoginAck, []byte{0x00}, protocol.PasswordBlockSize)
}

// panelReply frames a passthrough response, padding the body to padTo.
func panelReply(flags byte, body []byte, padTo int) []byte {
	h := protocol.Header{
		Length:      byte(len(body)),
		MessageType: protocol.MessageTypePassthrough,
		Flags:       flags,
		Command:     protocol.ModuleCommandPassthrough,
		Mode:        protocol.ModeSession,
	}
	return protocol.Encode(h, protocol.PadRight(body, padTo, protocol.FillByte))
}

func (s *Server) initCommReply() []byte {
	body := make([]byte, protocol.PanelRequestBodySize)
	body[0] = protocol.OpcodeInitComm
	copy(body[panelTypeOffset:], protocol.ASCIIFixedWidth(s.image.PanelType, panelTypeLength, ' '))
	protocol.SealChecksum(body)
	return panelReply(protocol.FlagsLoginAck, body, 0)
}

func (s *Server) serialInitReply() []byte {
	body := make([]byte, protocol.PanelRequestBodySize)
	body[serialInitModuleAddress] = simModuleAddress
	copy(body[serialInitProductInfo:], simProductInfo[:])
	copy(body[serialInitModuleID:], simModuleID[:])
	copy(body[serialInitSerialNumber:], s.serial[:])
	copy(body[serialInitEVOSection:], simEVOSection[:])
	protocol.SealChecksum(body)
	return panelReply(protocol.FlagsLoginAck, body, 0)
}

// confirmReply accepts the confirmation when the module login succeeded and
// the request echoes this module's serial number.
func (s *Server) confirmReply(sess *connState, body []byte) []byte {
	result := confirmDeclined
	if sess.authenticated &&
		len(body) >= serialInitSerialNumber+len(s.serial) &&
		bytes.Equal(body[serialInitSerialNumber:serialInitSerialNumber+len(s.serial)], s.serial[:]) {
		result = confirmAccepted
		sess.loggedIn = true
		s.logger.Info("%s: logged in", sess.remote)
	} else {
		s.logger.Info("%s: login confirmation declined", sess.remote)
	}
	return panelReply(protocol.FlagsLoginAck, []byte{result, 0x00, 0x00}, 0)
}

// readMemoryReply serves a memory read. Reads before login, reads of unknown
// RAM blocks and deliberately dropped reads get no answer.
func (s *Server) readMemoryReply(sess *connState, body []byte) []byte {
	if len(body) < protocol.ReadMemoryBodySize {
		return nil
	}
	if !sess.loggedIn {
		s.logger.Info("%s: memory read before login ignored", sess.remote)
		return nil
	}

	control, mid, lo, length := body[2], body[4], body[5], int(body[6])
	if length > client.MaxReadLength {
		length = client.MaxReadLength
	}
	address := uint32(mid)<<8 | uint32(lo)

	n := s.reads.Add(1)
	if every := uint64(s.image.DropEvery); every > 0 && n%every == 0 {
		s.logger.Verbose("%s: dropping read #%d", sess.remote, n)
		return nil
	}

	var payload []byte
	if protocol.GetBit(uint32(control), protocol.ControlByteRAMBit) {
		data, ok := s.mem.readRAM(address, length)
		if !ok {
			s.logger.Verbose("%s: no RAM block %d", sess.remote, address)
			return nil
		}
		payload = data
	} else {
		address |= uint32(control&0x03) << 16
		payload = s.mem.readEEPROM(address, length)
	}

	resp := []byte{0x52, 0x00, control, 0x00, mid, lo}
	resp = append(resp, payload...)
	resp = append(resp, 0x00)
	protocol.SealChecksum(resp)
	reply := panelReply(flagsRelay, resp, 0)

	if every := uint64(s.image.EventEvery); every > 0 && n%every == 0 {
		reply = append(liveEvent(), reply...)
	}
	return reply
}

// liveEvent is an unsolicited event the panel pushes between messages.
func liveEvent() []byte {
	return panelReply(flagsRelay, []byte{0xE2, 0x14, 0x19, 0x01}, protocol.PasswordBlockSize)
}
