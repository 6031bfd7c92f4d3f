package token

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordVersionV1 = 1

const flagVerified = 1 << 0

// Encode serializes a token record for storage. The secret material is
// deliberately not part of the record; the store holds only what is
// needed to look a token up by its derived ID.
func Encode(tok Token) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	buf.WriteByte(byte(tok.Kind))

	var flags byte
	if tok.Verified {
		flags |= flagVerified
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, tok.CreatedAt); err != nil {
		return nil, err
	}

	if len(tok.UID) > 255 {
		return nil, errors.New("token uid too long")
	}
	buf.WriteByte(byte(len(tok.UID)))
	buf.WriteString(tok.UID)

	if len(tok.DeviceID) > 255 {
		return nil, errors.New("token device id too long")
	}
	buf.WriteByte(byte(len(tok.DeviceID)))
	buf.WriteString(tok.DeviceID)

	return buf.Bytes(), nil
}

// Decode parses a record previously produced by Encode. The token ID is
// not part of the record and must be supplied by the caller.
func Decode(id string, data []byte) (Token, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Token{}, err
	}
	if version != recordVersionV1 {
		return Token{}, errors.New("invalid token record version")
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return Token{}, err
	}
	if Kind(kind) >= kindCount {
		return Token{}, errors.New("invalid token record kind")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return Token{}, err
	}

	tok := Token{
		ID:       id,
		Kind:     Kind(kind),
		Verified: flags&flagVerified != 0,
	}

	if err := binary.Read(reader, binary.BigEndian, &tok.CreatedAt); err != nil {
		return Token{}, err
	}

	uidLen, err := reader.ReadByte()
	if err != nil {
		return Token{}, err
	}
	uid := make([]byte, uidLen)
	if _, err := io.ReadFull(reader, uid); err != nil {
		return Token{}, err
	}
	tok.UID = string(uid)

	deviceLen, err := reader.ReadByte()
	if err != nil {
		return Token{}, err
	}
	device := make([]byte, deviceLen)
	if _, err := io.ReadFull(reader, device); err != nil {
		return Token{}, err
	}
	tok.DeviceID = string(device)

	return tok, nil
}
