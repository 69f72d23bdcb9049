// Package codec converts carts to and from the byte records kept in the
// key-value store.
package codec

import (
	"fmt"

	"github.com/MouadFiali/gke-cloud-project/models"
)

// Codec is a deterministic encode/decode pair for carts. Decode of a record
// produced by Encode yields an equal cart. Decoded carts always carry a
// non-nil item slice.
type Codec interface {
	Name() string
	Encode(cart *models.Cart) ([]byte, error)
	Decode(data []byte) (*models.Cart, error)
}

const (
	NameProto = "proto"
	NameJSON  = "json"
)

// New returns the codec registered under name.
func New(name string) (Codec, error) {
	switch name {
	case "", NameProto:
		return ProtoCodec{}, nil
	case NameJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown cart codec %q", name)
	}
}
