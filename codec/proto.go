package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/MouadFiali/gke-cloud-project/models"
)

// Field numbers of the hipstershop Cart and CartItem messages.
const (
	cartUserIDField  protowire.Number = 1
	cartItemsField   protowire.Number = 2
	itemProductField protowire.Number = 1
	itemQtyField     protowire.Number = 2
)

// ProtoCodec writes carts in the protobuf layout shared with the other shop
// services, so records stay readable by any hipstershop.Cart parser.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return NameProto }

func (ProtoCodec) Encode(cart *models.Cart) ([]byte, error) {
	if cart == nil {
		return nil, fmt.Errorf("proto codec: nil cart")
	}
	var b []byte
	if cart.UserID != "" {
		b = protowire.AppendTag(b, cartUserIDField, protowire.BytesType)
		b = protowire.AppendString(b, cart.UserID)
	}
	for _, item := range cart.Items {
		b = protowire.AppendTag(b, cartItemsField, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeItem(item))
	}
	return b, nil
}

func encodeItem(item models.CartItem) []byte {
	var b []byte
	if item.ProductID != "" {
		b = protowire.AppendTag(b, itemProductField, protowire.BytesType)
		b = protowire.AppendString(b, item.ProductID)
	}
	if item.Quantity != 0 {
		b = protowire.AppendTag(b, itemQtyField, protowire.VarintType)
		// int32 fields are sign-extended to 64 bits on the wire
		b = protowire.AppendVarint(b, uint64(int64(item.Quantity)))
	}
	return b
}

func (ProtoCodec) Decode(data []byte) (*models.Cart, error) {
	cart := &models.Cart{Items: []models.CartItem{}}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("proto codec: cart tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == cartUserIDField && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, fmt.Errorf("proto codec: user_id: %w", protowire.ParseError(m))
			}
			cart.UserID = v
			n = m
		case num == cartItemsField && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, fmt.Errorf("proto codec: items: %w", protowire.ParseError(m))
			}
			item, err := decodeItem(v)
			if err != nil {
				return nil, err
			}
			cart.Items = append(cart.Items, item)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("proto codec: skip field %d: %w", num, protowire.ParseError(n))
			}
		}
		data = data[n:]
	}
	return cart, nil
}

func decodeItem(data []byte) (models.CartItem, error) {
	var item models.CartItem
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return item, fmt.Errorf("proto codec: item tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == itemProductField && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return item, fmt.Errorf("proto codec: product_id: %w", protowire.ParseError(m))
			}
			item.ProductID = v
			n = m
		case num == itemQtyField && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return item, fmt.Errorf("proto codec: quantity: %w", protowire.ParseError(m))
			}
			item.Quantity = int32(v)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return item, fmt.Errorf("proto codec: skip item field %d: %w", num, protowire.ParseError(n))
			}
		}
		data = data[n:]
	}
	return item, nil
}
