// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpc

import (
	"fmt"

	binarypack "github.com/roman-kachanovsky/go-binary-pack/binary-pack"
)

// envelopeFormat is object id followed by op code, the payload trails it
var envelopeFormat = []string{"16s", "I"}

// EnvelopeHeaderSize is the size of the fixed part of an Envelope
const EnvelopeHeaderSize = IDSize + 4

// Envelope addresses one control operation to one object
type Envelope struct {
	Object  ID
	Op      Op
	Payload []byte
}

// Marshal encodes the envelope
func (e *Envelope) Marshal() ([]byte, error) {
	bp := new(binarypack.BinaryPack)
	hdr, err := bp.Pack(envelopeFormat, []interface{}{string(e.Object[:]), int(e.Op)})
	if err != nil {
		return nil, fmt.Errorf("pack envelope: %w", err)
	}
	return append(hdr, e.Payload...), nil
}

// UnmarshalEnvelope decodes an envelope. The payload aliases b.
func UnmarshalEnvelope(b []byte) (*Envelope, error) {
	if len(b) < EnvelopeHeaderSize {
		return nil, ErrBadRPC
	}
	bp := new(binarypack.BinaryPack)
	vals, err := bp.UnPack(envelopeFormat, b[:EnvelopeHeaderSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRPC, err)
	}
	obj, ok1 := vals[0].(string)
	op, ok2 := vals[1].(int)
	if !ok1 || !ok2 {
		return nil, ErrBadRPC
	}
	e := &Envelope{Op: Op(uint32(op)), Payload: b[EnvelopeHeaderSize:]}
	copy(e.Object[:], obj)
	return e, nil
}
