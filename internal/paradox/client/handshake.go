package client

// Login state machine: states, transient handshake data and the step table

import (
	"errors"
	"fmt"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// State is a session handshake state.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateAuthenticating
	StateNegotiatingSerial
	StateInitializingComm
	StateAwaitingPanelInit
	StateConfirming
	StateLoggedIn
	StateLoggedOut
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateProbing:           "probing",
	StateAuthenticating:    "authenticating",
	StateNegotiatingSerial: "negotiating_serial",
	StateInitializingComm:  "initializing_comm",
	StateAwaitingPanelInit: "awaiting_panel_init",
	StateConfirming:        "confirming",
	StateLoggedIn:          "logged_in",
	StateLoggedOut:         "logged_out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// handshakeState carries what one step learns into the next step's request.
// It exists only for the duration of Login.
type handshakeState struct {
	password  string
	panelType string

	moduleAddress    byte
	productID        byte
	softwareVersion  byte
	softwareRevision byte
	softwareID       byte
	moduleID         [2]byte
	serialNumber     [4]byte
	evoSection       [9]byte // EVO section 3030-3038
}

// Constant fields of the confirmation request.
const (
	modemSpeed       byte = 0x0A
	winloadTypeID    byte = 0x30
	sourceSoftwareIP byte = 0x02
)

// Winload sends user code 021000.
var confirmUserCode = [3]byte{0x02, 0x10, 0x00}

// Offsets in the serial-init response body.
const (
	serialInitModuleAddress = 1
	serialInitProductID     = 4
	serialInitModuleID      = 8
	serialInitSerialNumber  = 17
	serialInitEVOSection    = 21
	serialInitMinLength     = 30
)

// Panel type location in the init-communication response body.
const (
	panelTypeOffset = 28
	panelTypeLength = 8
)

// loginStep is one row of the login transition table.
type loginStep struct {
	name    string
	from    State
	to      State
	request func(hs *handshakeState) []byte
	// handle validates the response and harvests state. Nil discards it.
	handle func(hs *handshakeState, pkt protocol.Packet) error
}

// errConfirmRejected marks a final confirmation the panel did not accept.
var errConfirmRejected = errors.New("login confirmation rejected")

var loginSteps = []loginStep{
	{
		name:    "module_login",
		from:    StateIdle,
		to:      StateProbing,
		request: buildModuleLogin,
		handle:  handleModuleLogin,
	},
	{
		name:    "probe_f2",
		from:    StateProbing,
		to:      StateAuthenticating,
		request: func(*handshakeState) []byte { return buildProbe(protocol.ModuleCommandProbeF2) },
	},
	{
		name:    "probe_f3",
		from:    StateAuthenticating,
		to:      StateNegotiatingSerial,
		request: func(*handshakeState) []byte { return buildProbe(protocol.ModuleCommandProbeF3) },
	},
	{
		name:    "init_communication",
		from:    StateNegotiatingSerial,
		to:      StateInitializingComm,
		request: func(*handshakeState) []byte { return buildPanelRequest(protocol.OpcodeInitComm) },
		handle:  handleInitCommunication,
	},
	{
		name:    "probe_f8",
		from:    StateInitializingComm,
		to:      StateAwaitingPanelInit,
		request: func(*handshakeState) []byte { return buildProbeF8() },
	},
	{
		name:    "serial_init",
		from:    StateAwaitingPanelInit,
		to:      StateConfirming,
		request: func(*handshakeState) []byte { return buildPanelRequest(protocol.OpcodeSerialInit, 0x20) },
		handle:  handleSerialInit,
	},
	{
		name:    "confirm",
		from:    StateConfirming,
		to:      StateLoggedIn,
		request: buildConfirm,
		handle:  handleConfirm,
	},
}

func passwordBlockLength(password string) int {
	n := len(password)
	return (n + protocol.PasswordBlockSize - 1) / protocol.PasswordBlockSize * protocol.PasswordBlockSize
}

func buildModuleLogin(hs *handshakeState) []byte {
	h := protocol.NewRequestHeader(len(hs.password), protocol.MessageTypeModule, protocol.ModuleCommandLogin, protocol.ModeSetup)
	body := protocol.ASCIIFixedWidth(hs.password, passwordBlockLength(hs.password), protocol.FillByte)
	return protocol.Encode(h, body)
}

func handleModuleLogin(_ *handshakeState, pkt protocol.Packet) error {
	// The acknowledgement sits in the response flags byte.
	if ack := pkt.Header[4]; ack != protocol.FlagsLoginAck {
		return &AuthenticationError{Step: 1, Got: ack, Want: protocol.FlagsLoginAck}
	}
	return nil
}

func buildProbe(command byte) []byte {
	h := protocol.NewRequestHeader(0, protocol.MessageTypeModule, command, protocol.ModeSetup)
	return h.Encode()
}

func buildProbeF8() []byte {
	payload := []byte{0x0A, 0x50, 0x08, 0x00, 0x00, 0x01, 0x00, 0x00, 0x59}
	h := protocol.NewRequestHeader(len(payload), protocol.MessageTypeModule, protocol.ModuleCommandProbeF8, protocol.ModeSetup)
	return protocol.Encode(h, protocol.PadRight(payload, protocol.PasswordBlockSize, protocol.FillByte))
}

// buildPanelRequest builds a 37-byte passthrough request starting with
// prefix, zero filled and sealed with a checksum.
func buildPanelRequest(prefix ...byte) []byte {
	body := protocol.SealChecksum(protocol.PadRight(prefix, protocol.PanelRequestBodySize, 0x00))
	h := protocol.NewRequestHeader(len(body), protocol.MessageTypePassthrough, protocol.ModuleCommandPassthrough, protocol.ModeSetup)
	return protocol.Encode(h, body)
}

func handleInitCommunication(hs *handshakeState, pkt protocol.Packet) error {
	if err := requireBody(pkt, panelTypeOffset+panelTypeLength); err != nil {
		return err
	}
	hs.panelType = protocol.DecodeASCIITrimmed(pkt.Body, panelTypeOffset, panelTypeLength)
	return nil
}

func handleSerialInit(hs *handshakeState, pkt protocol.Packet) error {
	if err := requireBody(pkt, serialInitMinLength); err != nil {
		return err
	}
	b := pkt.Body
	hs.moduleAddress = b[serialInitModuleAddress]
	hs.productID = b[serialInitProductID]
	hs.softwareVersion = b[serialInitProductID+1]
	hs.softwareRevision = b[serialInitProductID+2]
	hs.softwareID = b[serialInitProductID+3]
	copy(hs.moduleID[:], b[serialInitModuleID:])
	copy(hs.serialNumber[:], b[serialInitSerialNumber:])
	copy(hs.evoSection[:], b[serialInitEVOSection:])
	return nil
}

func buildConfirm(hs *handshakeState) []byte {
	body := make([]byte, 0, protocol.PanelRequestBodySize)
	body = append(body,
		protocol.OpcodeInitialize,
		hs.moduleAddress,
		0x00, 0x00,
		hs.productID,
		hs.softwareVersion,
		hs.softwareRevision,
		hs.softwareID,
		hs.moduleID[0], hs.moduleID[1],
		0x00, 0x00, // PC password
		modemSpeed,
		winloadTypeID,
	)
	body = append(body, confirmUserCode[:]...)
	body = append(body, hs.serialNumber[:]...)
	body = append(body, hs.evoSection[:]...)
	body = append(body,
		0x00, 0x00, 0x00, 0x00,
		sourceSoftwareIP,
		0x00, // carrier length
		0x00, // checksum
	)
	protocol.SealChecksum(body)

	h := protocol.NewRequestHeader(len(body), protocol.MessageTypePassthrough, protocol.ModuleCommandPassthrough, protocol.ModeSession)
	return protocol.Encode(h, body)
}

func handleConfirm(_ *handshakeState, pkt protocol.Packet) error {
	cmd, ok := pkt.Command()
	if !ok || cmd != protocol.CommandLoginConfirm {
		return errConfirmRejected
	}
	return nil
}

func buildLogout() []byte {
	body := protocol.SealChecksum([]byte{0x00, 0x07, 0x05, 0x00, 0x00, 0x00, 0x00})
	h := protocol.NewRequestHeader(len(body), protocol.MessageTypePassthrough, protocol.ModuleCommandPassthrough, protocol.ModeSession)
	return protocol.Encode(h, body)
}

func requireBody(pkt protocol.Packet, n int) error {
	if len(pkt.Body) < n {
		return fmt.Errorf("%w: body %d bytes, need %d", ErrShortResponse, len(pkt.Body), n)
	}
	return nil
}
