package protocol

// Wire constants for the IP150 software port

const (
	// HeaderSize is the fixed length of every message header.
	HeaderSize = 16

	// SyncByte starts every header.
	SyncByte byte = 0xAA

	// FillByte pads headers, password blocks and response bodies.
	FillByte byte = 0xEE

	// MaxReadSize bounds a single read from the module.
	MaxReadSize = 2048
)

// Header message types (byte 3).
const (
	MessageTypeModule      byte = 0x03 // handled by the IP150 itself
	MessageTypePassthrough byte = 0x04 // forwarded to the panel serial bus
)

// Header flags (byte 4).
const (
	FlagsRequest  byte = 0x08
	FlagsLoginAck byte = 0x38
)

// IP150 module commands (header byte 5).
const (
	ModuleCommandPassthrough byte = 0x00
	ModuleCommandLogin       byte = 0xF0
	ModuleCommandProbeF2     byte = 0xF2
	ModuleCommandProbeF3     byte = 0xF3
	ModuleCommandProbeF8     byte = 0xF8
)

// Header mode (byte 7).
const (
	ModeSetup   byte = 0x0A
	ModeSession byte = 0x14
)

// Panel commands, carried in the high nibble of body byte 0.
const (
	CommandLoginConfirm byte = 0x1
	CommandReadMemory   byte = 0x5
)

// Request opcodes (body byte 0).
const (
	OpcodeInitialize byte = 0x00
	OpcodeReadMemory byte = 0x50
	OpcodeSerialInit byte = 0x5F
	OpcodeInitComm   byte = 0x72
)

const (
	// PanelRequestBodySize is the body length of the init, serial-init and
	// confirmation requests.
	PanelRequestBodySize = 37

	// PasswordBlockSize is the block size the login password is padded to.
	PasswordBlockSize = 16

	ReadMemoryBodySize = 8

	// ReadMemoryPayloadOffset is where memory bytes start in a read response.
	ReadMemoryPayloadOffset = 6

	// ControlByteRAMBit selects RAM (set) or EEPROM (clear).
	ControlByteRAMBit uint = 7
)
