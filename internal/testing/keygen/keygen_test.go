package keygen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateEd25519(t *testing.T) {
	t.Parallel()

	pair, err := GenerateEd25519("beta@testnet")
	require.NoError(t, err)

	signer, err := ssh.ParsePrivateKey(pair.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	pub, comment, _, _, err := ssh.ParseAuthorizedKey(pair.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "beta@testnet", comment)
	assert.Equal(t, signer.PublicKey().Marshal(), pub.Marshal())
}

func TestGenerateEd25519_NoComment(t *testing.T) {
	t.Parallel()

	pair, err := GenerateEd25519("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pair.PublicKey), "ssh-ed25519 "))
	assert.True(t, strings.HasSuffix(string(pair.PublicKey), "\n"))
}

func TestGenerateEd25519_Unique(t *testing.T) {
	t.Parallel()

	a, err := GenerateEd25519("")
	require.NoError(t, err)
	b, err := GenerateEd25519("")
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	pair, err := GenerateEd25519("")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "id_ed25519")
	require.NoError(t, pair.WriteFiles(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pub, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	assert.Equal(t, pair.PublicKey, pub)
}
