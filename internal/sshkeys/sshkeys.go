// Package sshkeys validates and fingerprints the SSH public key material
// declared for the ssh-key auth method.
package sshkeys

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Validate checks that material is a parseable authorized-key line.
func Validate(material string) error {
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(material)); err != nil {
		return fmt.Errorf("invalid ssh public key: %w", err)
	}
	return nil
}

// Fingerprint returns the legacy MD5 colon-hex fingerprint, the format IAM
// reports for uploaded SSH public keys, so declared and observed keys can
// be matched without re-uploading.
func Fingerprint(material string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(material))
	if err != nil {
		return "", fmt.Errorf("invalid ssh public key: %w", err)
	}
	return ssh.FingerprintLegacyMD5(pub), nil
}
