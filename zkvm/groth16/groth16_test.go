package groth16

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synqronlabs/zkmail/zkvm"
)

func echoProgram() *zkvm.NativeExecutor {
	return zkvm.NewNativeExecutor("echo", func(env *zkvm.Env) error {
		b, err := env.ReadBytes()
		if err != nil {
			return err
		}
		env.CommitSlice(b)
		return nil
	})
}

func stdinWith(b []byte) *zkvm.Stdin {
	s := zkvm.NewStdin()
	s.WriteBytes(b)
	return s
}

func TestProveAndVerify(t *testing.T) {
	ctx := context.Background()
	prover := New(Config{})
	exec := echoProgram()

	receipt, err := prover.Prove(ctx, exec, stdinWith([]byte("public output")))
	require.NoError(t, err)
	assert.Equal(t, []byte("public output"), receipt.Journal)
	assert.Equal(t, exec.ImageID(), receipt.ImageID)
	assert.Len(t, receipt.Binding, 32)
	assert.NotEmpty(t, receipt.Seal)

	require.NoError(t, prover.Verify(receipt, exec.ImageID()))

	data, err := receipt.MarshalBinary()
	require.NoError(t, err)
	var reloaded zkvm.Receipt
	require.NoError(t, reloaded.UnmarshalBinary(data))
	require.NoError(t, prover.Verify(&reloaded, exec.ImageID()))
}

func TestVerifyRejectsTampering(t *testing.T) {
	ctx := context.Background()
	prover := New(Config{})
	exec := echoProgram()

	receipt, err := prover.Prove(ctx, exec, stdinWith([]byte("journal")))
	require.NoError(t, err)

	t.Run("journal", func(t *testing.T) {
		r := *receipt
		r.Journal = []byte("journaL")
		assert.ErrorIs(t, prover.Verify(&r, exec.ImageID()), zkvm.ErrSealInvalid)
	})

	t.Run("binding", func(t *testing.T) {
		r := *receipt
		r.Binding = bytes.Clone(receipt.Binding)
		r.Binding[31] ^= 1
		err := prover.Verify(&r, exec.ImageID())
		assert.True(t, errors.Is(err, zkvm.ErrSealInvalid) || errors.Is(err, zkvm.ErrMalformedReceipt), err)
	})

	t.Run("image", func(t *testing.T) {
		other := zkvm.NewNativeExecutor("other", nil)
		assert.ErrorIs(t, prover.Verify(receipt, other.ImageID()), zkvm.ErrImageMismatch)
	})

	t.Run("seal", func(t *testing.T) {
		r := *receipt
		r.Seal = r.Seal[:len(r.Seal)/2]
		assert.ErrorIs(t, prover.Verify(&r, exec.ImageID()), zkvm.ErrMalformedReceipt)
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, prover.Verify(nil, exec.ImageID()), zkvm.ErrMalformedReceipt)
	})
}

func TestProveExecutionFailure(t *testing.T) {
	prover := New(Config{})

	_, err := prover.Prove(context.Background(), echoProgram(), zkvm.NewStdin())
	assert.ErrorIs(t, err, zkvm.ErrExecution)
}

func TestKeyDirPersistsKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	exec := echoProgram()

	first := New(Config{KeyDir: dir})
	receipt, err := first.Prove(ctx, exec, stdinWith([]byte("x")))
	require.NoError(t, err)

	assert.FileExists(t, dir+"/"+provingKeyFile)
	assert.FileExists(t, dir+"/"+verifyingKeyFile)

	second := New(Config{KeyDir: dir})
	require.NoError(t, second.Verify(receipt, exec.ImageID()))

	// A prover with its own setup rejects receipts sealed under other keys.
	third := New(Config{})
	assert.ErrorIs(t, third.Verify(receipt, exec.ImageID()), zkvm.ErrSealInvalid)
}
