package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyPair is a private key in OpenSSH PEM format and its public half in
// authorized_keys format.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// GenerateEd25519 creates a new ed25519 key pair. comment ends up after the
// key in the authorized_keys line.
func GenerateEd25519(comment string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	authorized := ssh.MarshalAuthorizedKey(sshPub)
	if comment != "" {
		authorized = append(authorized[:len(authorized)-1], []byte(" "+comment+"\n")...)
	}
	return &KeyPair{
		PrivateKey: pem.EncodeToMemory(block),
		PublicKey:  authorized,
	}, nil
}

// WriteFiles writes the pair to path and path.pub with the permissions ssh
// requires.
func (k *KeyPair) WriteFiles(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, k.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(path+".pub", k.PublicKey, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}
