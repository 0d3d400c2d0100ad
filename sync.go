package packsync

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
	"unicode/utf8"
)

// ChannelName is the plugin message channel proxies and backends talk on.
const ChannelName = "rp:plugin"

// Sync opcodes.
const (
	OpPackChange = "packChange"
	OpClearPack  = "clearPack"
	OpAuthLogin  = "authLogin"
)

// SyncMessage is one message on ChannelName. Pack, URL and Hash are only set for
// OpPackChange.
type SyncMessage struct {
	Op     string
	Player string
	Pack   string
	URL    string
	Hash   string
}

// PackChangeMessage builds the message announcing pack for player.
func PackChangeMessage(player string, pack *ResourcePack) SyncMessage {
	return SyncMessage{
		Op:     OpPackChange,
		Player: player,
		Pack:   pack.Name(),
		URL:    pack.URL(),
		Hash:   pack.HashHex(),
	}
}

// EncodeMessage serializes m. Strings are written like Java's DataOutput.writeUTF:
// a big-endian uint16 byte length followed by modified UTF-8.
func EncodeMessage(m SyncMessage) ([]byte, error) {
	fields := []string{m.Op, m.Player}
	switch m.Op {
	case OpPackChange:
		fields = append(fields, m.Pack, m.URL, m.Hash)
	case OpClearPack, OpAuthLogin:
	default:
		return nil, &ProtocolIncompatibleError{Protocol: -1, Feature: "sync opcode " + m.Op}
	}

	var buf bytes.Buffer
	for _, f := range fields {
		if err := writeUTF(&buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeMessage parses a message produced by EncodeMessage or by a Java peer.
func DecodeMessage(data []byte) (SyncMessage, error) {
	r := bytes.NewReader(data)
	var m SyncMessage
	var err error

	if m.Op, err = readUTF(r); err != nil {
		return m, fmt.Errorf("packsync: read opcode: %w", err)
	}
	if m.Player, err = readUTF(r); err != nil {
		return m, fmt.Errorf("packsync: read %s player: %w", m.Op, err)
	}

	switch m.Op {
	case OpPackChange:
		for _, dst := range []*string{&m.Pack, &m.URL, &m.Hash} {
			if *dst, err = readUTF(r); err != nil {
				return m, fmt.Errorf("packsync: read %s: %w", m.Op, err)
			}
		}
	case OpClearPack, OpAuthLogin:
	default:
		return m, &ProtocolIncompatibleError{Protocol: -1, Feature: "sync opcode " + m.Op}
	}
	return m, nil
}

// writeUTF writes s in modified UTF-8: NUL is two bytes and supplementary characters are
// surrogate pairs of three bytes each.
func writeUTF(buf *bytes.Buffer, s string) error {
	encoded := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r == 0:
			encoded = append(encoded, 0xC0, 0x80)
		case r < 0x80:
			encoded = append(encoded, byte(r))
		case r < 0x800:
			encoded = append(encoded, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			encoded = appendUTF3(encoded, r)
		default:
			hi, lo := utf16.EncodeRune(r)
			encoded = appendUTF3(encoded, hi)
			encoded = appendUTF3(encoded, lo)
		}
	}
	if len(encoded) > math.MaxUint16 {
		return &ProtocolIncompatibleError{Protocol: -1, Feature: fmt.Sprintf("string of %d encoded bytes", len(encoded))}
	}

	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(encoded)))
	buf.Write(length[:])
	buf.Write(encoded)
	return nil
}

func appendUTF3(b []byte, r rune) []byte {
	return append(b, 0xE0|byte(r>>12), 0x80|byte((r>>6)&0x3F), 0x80|byte(r&0x3F))
}

var errMalformedUTF = errors.New("malformed modified UTF-8")

func readUTF(r *bytes.Reader) (string, error) {
	var length [2]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return "", err
	}
	raw := make([]byte, binary.BigEndian.Uint16(length[:]))
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}

	units := make([]uint16, 0, len(raw))
	for i := 0; i < len(raw); {
		b := raw[i]
		switch {
		case b < 0x80:
			units = append(units, uint16(b))
			i++
		case b&0xE0 == 0xC0:
			if i+1 >= len(raw) || raw[i+1]&0xC0 != 0x80 {
				return "", errMalformedUTF
			}
			units = append(units, uint16(b&0x1F)<<6|uint16(raw[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0:
			if i+2 >= len(raw) || raw[i+1]&0xC0 != 0x80 || raw[i+2]&0xC0 != 0x80 {
				return "", errMalformedUTF
			}
			units = append(units, uint16(b&0x0F)<<12|uint16(raw[i+1]&0x3F)<<6|uint16(raw[i+2]&0x3F))
			i += 3
		default:
			return "", errMalformedUTF
		}
	}

	runes := utf16.Decode(units)
	out := make([]byte, 0, len(raw))
	for _, r := range runes {
		out = utf8.AppendRune(out, r)
	}
	return string(out), nil
}
