package codec

import (
	"encoding/json"
	"fmt"

	"github.com/MouadFiali/gke-cloud-project/models"
)

// JSONCodec stores carts as JSON documents.
type JSONCodec struct{}

func (JSONCodec) Name() string { return NameJSON }

func (JSONCodec) Encode(cart *models.Cart) ([]byte, error) {
	if cart == nil {
		return nil, fmt.Errorf("json codec: nil cart")
	}
	return json.Marshal(cart)
}

func (JSONCodec) Decode(data []byte) (*models.Cart, error) {
	cart := &models.Cart{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, cart); err != nil {
			return nil, fmt.Errorf("json codec: %w", err)
		}
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}
