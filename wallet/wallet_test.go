package wallet

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyansociety/anchor-sdk-go/tx"
)

func TestNewWalletFromHex(t *testing.T) {
	const keyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

	w1, err := NewWalletFromHex(keyHex)
	require.NoError(t, err)
	w2, err := NewWalletFromHex("0x" + keyHex)
	require.NoError(t, err)
	assert.Equal(t, w1.Address(), w2.Address())
	assert.NotEqual(t, [20]byte{}, [20]byte(w1.Address()))

	_, err = NewWalletFromHex("abcd")
	assert.Error(t, err)
	_, err = NewWalletFromHex("zz" + keyHex[2:])
	assert.Error(t, err)
}

func TestSignDigestRecovers(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], ethcrypto.Keccak256([]byte("payload")))

	sig, err := w.SignDigest(digest)
	require.NoError(t, err)

	recovered, err := tx.RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), recovered)
}
