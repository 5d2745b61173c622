package validatorpk

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "c0045b86101f804f3f4f2012ef31fff807e87de579a3faa7947d1b487a810e35dc2c3b6071ac465046634b5f4a8e09bf8e1f2e7eccb699356b9e6fd496ca4b1677d1"

func TestFromString(t *testing.T) {
	require := require.New(t)

	exp := PubKey{
		Type: Types.Secp256k1,
		Raw:  common.FromHex(testKeyHex[2:]),
	}

	for _, in := range []string{testKeyHex, "0x" + testKeyHex} {
		got, err := FromString(in)
		require.NoError(err)
		require.Equal(exp, got)
	}

	for _, bad := range []string{"", "0x", "-"} {
		_, err := FromString(bad)
		require.ErrorIs(err, ErrEmptyPubKey, bad)
	}
}

func TestIDRoundTrip(t *testing.T) {
	require := require.New(t)

	pk, err := FromString(testKeyHex)
	require.NoError(err)
	require.Equal(ID("0x"+testKeyHex), pk.ID())

	back, err := FromString(string(pk.ID()))
	require.NoError(err)
	require.True(pk.Equal(back))

	other := pk.Copy()
	other.Type = 0x01
	require.False(pk.Equal(other))
}

func TestCopyDoesNotAlias(t *testing.T) {
	require := require.New(t)

	original := PubKey{Type: 0x01, Raw: []byte{0xAA, 0xBB}}
	cp := original.Copy()
	require.Equal(original, cp)

	cp.Raw[0] = 0xFF
	require.Equal(uint8(0xAA), original.Raw[0])

	raw := []byte{0xc0, 0x01, 0x02}
	pk, err := FromBytes(raw)
	require.NoError(err)
	raw[1] = 0x09
	require.Equal([]byte{0x01, 0x02}, pk.Raw)
}

func TestValidate(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)

	pk := FromECDSA(&key.PublicKey)
	require.NoError(pk.Validate())

	pub, err := pk.ECDSA()
	require.NoError(err)
	require.Equal(key.PublicKey.X, pub.X)

	require.Error(PubKey{Type: Types.Secp256k1, Raw: []byte{0x04}}.Validate())
	require.ErrorIs(PubKey{Type: 0x01, Raw: pk.Raw}.Validate(), ErrUnknownKeyType)
	require.True(PubKey{}.Empty())
	require.False(pk.Empty())
}

func TestMarshalUnmarshal(t *testing.T) {
	require := require.New(t)

	original := PubKey{Type: Types.Secp256k1, Raw: []byte{0xAA, 0xBB, 0xCC}}

	data, err := json.Marshal(original)
	require.NoError(err)
	require.Equal(`"`+original.String()+`"`, string(data))

	var decoded PubKey
	require.NoError(json.Unmarshal(data, &decoded))
	require.Equal(original, decoded)

	// map keys go through MarshalText as well
	byID := map[ID]int{original.ID(): 1}
	data, err = json.Marshal(byID)
	require.NoError(err)
	require.Equal(`{"`+original.String()+`":1}`, string(data))
}
