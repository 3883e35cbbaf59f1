package zkvm

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Receipt is the artifact of one sealed run.
type Receipt struct {
	// ImageID identifies the program that produced Journal.
	ImageID [32]byte
	// Journal is the program's public output.
	Journal []byte
	// Seal is the serialized proof.
	Seal []byte
	// Binding is the public commitment the seal proves knowledge of.
	Binding []byte
}

const receiptFields = 4

// MarshalMsg appends the MessagePack encoding of r to b.
func (r *Receipt) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, receiptFields)
	o = msgp.AppendString(o, "image_id")
	o = msgp.AppendBytes(o, r.ImageID[:])
	o = msgp.AppendString(o, "journal")
	o = msgp.AppendBytes(o, r.Journal)
	o = msgp.AppendString(o, "seal")
	o = msgp.AppendBytes(o, r.Seal)
	o = msgp.AppendString(o, "binding")
	o = msgp.AppendBytes(o, r.Binding)
	return o, nil
}

// UnmarshalMsg decodes a receipt from bts and returns the remaining bytes.
// Unknown keys are skipped.
func (r *Receipt) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, fmt.Errorf("%w: %w", ErrMalformedReceipt, err)
	}

	for range n {
		var key []byte
		key, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, fmt.Errorf("%w: %w", ErrMalformedReceipt, err)
		}

		switch string(key) {
		case "image_id":
			var id []byte
			id, bts, err = msgp.ReadBytesZC(bts)
			if err == nil && len(id) != len(r.ImageID) {
				err = fmt.Errorf("image id is %d bytes", len(id))
			}
			if err == nil {
				copy(r.ImageID[:], id)
			}
		case "journal":
			r.Journal, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "seal":
			r.Seal, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "binding":
			r.Binding, bts, err = msgp.ReadBytesBytes(bts, nil)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, fmt.Errorf("%w: field %q: %w", ErrMalformedReceipt, key, err)
		}
	}
	return bts, nil
}

// MarshalBinary returns the receipt file contents.
func (r *Receipt) MarshalBinary() ([]byte, error) {
	return r.MarshalMsg(nil)
}

// UnmarshalBinary parses receipt file contents. Trailing bytes are rejected.
func (r *Receipt) UnmarshalBinary(data []byte) error {
	rest, err := r.UnmarshalMsg(data)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedReceipt, len(rest))
	}
	return nil
}
