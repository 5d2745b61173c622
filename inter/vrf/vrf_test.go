package vrf

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-rrsc/inter/validatorpk"
)

func TestSignVerify(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	pub := validatorpk.FromECDSA(&key.PublicKey)
	tr := Transcript{Randomness: hash.Of([]byte("seed")), Slot: 42}

	out, proof, err := Sign(key, tr)
	require.NoError(err)
	require.Len(proof, ProofLength)
	require.NoError(Verify(pub, tr, out, proof))

	// deterministic per (key, transcript)
	out2, proof2, err := Sign(key, tr)
	require.NoError(err)
	require.Equal(out, out2)
	require.Equal(proof, proof2)

	// different slot, different output
	other, _, err := Sign(key, Transcript{Randomness: tr.Randomness, Slot: 43})
	require.NoError(err)
	require.NotEqual(out, other)
}

func TestSignVectors(t *testing.T) {
	key, err := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	require.NoError(t, err)
	pub := validatorpk.FromECDSA(&key.PublicKey)
	require.Equal(t, "0x04ca634cae0d49acb401d8a4c6b6fe8c55b70d115bf400769cc1400f3258cd31387574077f301b421bc84df7266c44e9e6d569fc56be00812904767bf5ccd1fc7f",
		hexutil.Encode(pub.Raw))

	randomness := hash.Of([]byte("seed"))
	require.Equal(t, "0x19b25856e1c150ca834cffc8b59b23adbd0ec0389e58eb22b3b64768098d002b", hexutil.Encode(randomness.Bytes()))

	tests := []struct {
		slot   uint64
		digest string
		output string
		proof  string
	}{
		{
			slot:   42,
			digest: "0xa91883a9a408b41ef3a18a61ca6e4b967556ee80a2cde7164f8edc15faaa84e7",
			output: "0x9785277d7f0a97c6c8e9c97b70bf4669dabdc369af14593ebdeba4f8db609bf7",
			proof:  "0x0c31ae7d5261328f086ccf8d1d87135abe68b1bcf548becd32168b0e4b0abe32403f928ec03dc27e46cd261aa1df1fcab8897c8b5d9d014627b8699d380d0bb001",
		},
		{
			slot:   43,
			output: "0x4ccd77074b18fd3ec55454d845ebb51e2e7b6ca7a2b3a5ddc2aee08c9011efc3",
			proof:  "0xeade247acf7549634d0fae9d3da2648de6c2695d6646091c491e4910751187230239723c2ccb2aa3b293ab38e732d50d39310db450e624098fbd6daf44aadac700",
		},
	}
	for _, tt := range tests {
		tr := Transcript{Randomness: randomness, Slot: tt.slot}
		if tt.digest != "" {
			require.Equal(t, tt.digest, hexutil.Encode(tr.Digest().Bytes()), "slot %d", tt.slot)
		}

		out, proof, err := Sign(key, tr)
		require.NoError(t, err)
		require.Equal(t, tt.output, out.String(), "slot %d", tt.slot)
		require.Equal(t, tt.proof, hexutil.Encode(proof), "slot %d", tt.slot)
		require.NoError(t, Verify(pub, tr, out, proof))
	}
}

func TestVerifyRejects(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	stranger, err := crypto.GenerateKey()
	require.NoError(err)
	tr := Transcript{Randomness: hash.Of([]byte("seed")), Slot: 1}

	out, proof, err := Sign(key, tr)
	require.NoError(err)

	require.ErrorIs(Verify(validatorpk.FromECDSA(&stranger.PublicKey), tr, out, proof), ErrBadProof)
	require.ErrorIs(Verify(validatorpk.FromECDSA(&key.PublicKey), Transcript{Randomness: tr.Randomness, Slot: 2}, out, proof), ErrBadProof)
	require.ErrorIs(Verify(validatorpk.FromECDSA(&key.PublicKey), tr, out, proof[:10]), ErrBadProof)

	var forged Output
	forged[0] = ^out[0]
	require.ErrorIs(Verify(validatorpk.FromECDSA(&key.PublicKey), tr, forged, proof), ErrOutputMismatch)

	require.Error(Verify(validatorpk.PubKey{Type: 0x01, Raw: []byte{1}}, tr, out, proof))
}

func TestOutputThreshold(t *testing.T) {
	require := require.New(t)

	var o Output
	o[0] = 0x80
	half := new(big.Int).Lsh(big.NewInt(1), ThresholdBits-1)
	require.Equal(0, o.Uint128().Cmp(half))
	require.False(o.Less(half))

	o[0] = 0x7f
	for i := 1; i < OutputLength; i++ {
		o[i] = 0xff
	}
	require.True(o.Less(half))
	// only the 128-bit prefix takes part in the comparison
	require.Equal(0, o.Uint128().Cmp(new(big.Int).Sub(half, big.NewInt(1))))
}

func TestOutputText(t *testing.T) {
	var o Output
	o[31] = 0x01
	data, err := json.Marshal(o)
	require.NoError(t, err)
	require.Equal(t, `"0x0000000000000000000000000000000000000000000000000000000000000001"`, string(data))

	var back Output
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, o, back)
}

func TestTranscriptDigest(t *testing.T) {
	a := Transcript{Randomness: hash.Of([]byte("a")), Slot: 1}
	b := Transcript{Randomness: hash.Of([]byte("b")), Slot: 1}
	require.NotEqual(t, a.Digest(), b.Digest())
	require.Equal(t, a.Digest(), Transcript{Randomness: hash.Of([]byte("a")), Slot: 1}.Digest())
}
