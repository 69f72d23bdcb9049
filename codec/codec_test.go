package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/MouadFiali/gke-cloud-project/codec"
	"github.com/MouadFiali/gke-cloud-project/models"
)

func sampleCarts() []*models.Cart {
	return []*models.Cart{
		models.NewEmptyCart(""),
		models.NewEmptyCart("u1"),
		{UserID: "u1", Items: []models.CartItem{{ProductID: "SKU1", Quantity: 5}, {ProductID: "SKU2", Quantity: 1}}},
		{UserID: "u-zero", Items: []models.CartItem{{ProductID: "SKU3", Quantity: 0}}},
		{UserID: "u-neg", Items: []models.CartItem{{ProductID: "SKU4", Quantity: -3}, {ProductID: "", Quantity: 2}}},
		{UserID: "ünïcode", Items: []models.CartItem{{ProductID: "OLJCESPC7Z", Quantity: 2147483647}}},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{codec.NameProto, codec.NameJSON} {
		c, err := codec.New(name)
		require.NoError(t, err)

		for _, cart := range sampleCarts() {
			data, err := c.Encode(cart)
			require.NoError(t, err)

			got, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, cart, got, "codec %s", name)
		}
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := codec.New("xml")
	assert.Error(t, err)
}

func TestProtoCodec_EmptyRecordIsEmptyCart(t *testing.T) {
	got, err := codec.ProtoCodec{}.Decode(nil)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, "", got.UserID)
}

func TestProtoCodec_SkipsUnknownFields(t *testing.T) {
	data, err := codec.ProtoCodec{}.Encode(&models.Cart{UserID: "u1", Items: []models.CartItem{{ProductID: "p", Quantity: 1}}})
	require.NoError(t, err)

	data = protowire.AppendTag(data, 9, protowire.VarintType)
	data = protowire.AppendVarint(data, 42)

	got, err := codec.ProtoCodec{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Len(t, got.Items, 1)
}

func TestProtoCodec_Truncated(t *testing.T) {
	data, err := codec.ProtoCodec{}.Encode(&models.Cart{UserID: "user-with-long-id"})
	require.NoError(t, err)

	_, err = codec.ProtoCodec{}.Decode(data[:len(data)-3])
	assert.Error(t, err)
}

func TestJSONCodec_Malformed(t *testing.T) {
	_, err := codec.JSONCodec{}.Decode([]byte("{not json"))
	assert.Error(t, err)
}
