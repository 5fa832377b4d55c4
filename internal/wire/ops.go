package wire

import "fmt"

// Request opcodes sent by the client.
const (
	OpOpen       uint32 = 0x01
	OpClose      uint32 = 0x02
	OpRead       uint32 = 0x03
	OpWrite      uint32 = 0x04
	OpSeek       uint32 = 0x05
	OpTell       uint32 = 0x06
	OpTruncate   uint32 = 0x07
	OpStat       uint32 = 0x08
	OpList       uint32 = 0x09
	OpRemove     uint32 = 0x0A
	OpMkdir      uint32 = 0x0B
	OpRename     uint32 = 0x0C
	OpLink       uint32 = 0x0D
	OpSetModTime uint32 = 0x0E
	OpHashFile   uint32 = 0x0F
	OpDeviceInfo uint32 = 0x10
)

// Response opcodes sent by the device. The tag echoes the request tag.
const (
	OpStatus uint32 = 0x64
	OpData   uint32 = 0x65
)

var opNames = map[uint32]string{
	OpOpen:       "OPEN",
	OpClose:      "CLOSE",
	OpRead:       "READ",
	OpWrite:      "WRITE",
	OpSeek:       "SEEK",
	OpTell:       "TELL",
	OpTruncate:   "TRUNCATE",
	OpStat:       "STAT",
	OpList:       "LIST",
	OpRemove:     "REMOVE",
	OpMkdir:      "MKDIR",
	OpRename:     "RENAME",
	OpLink:       "LINK",
	OpSetModTime: "SET_MOD_TIME",
	OpHashFile:   "HASH_FILE",
	OpDeviceInfo: "DEVICE_INFO",
	OpStatus:     "STATUS",
	OpData:       "DATA",
}

// OpName returns a human-readable opcode name for logging and diagnostics.
func OpName(op uint32) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_0x%02X", op)
}
