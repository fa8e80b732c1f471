package sshkeys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerryBytes/awsorgctl/internal/sshkeys"
)

const (
	ed25519Key = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIODuA0PPw7vwTJwpcDI7ffunaFZecDvAXmC2Bq2aR+81 ashely@example.com"
	rsaKey     = "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQCy5o+q5RhW2KdNH0/cwz2DgRDck+SO+tZVK8PqX69BWXQrZiIbJ8qjHrj/hjJ8GXhQ7rHSDEt2eOiur1rrogrZSpxXXNqV+kMC7LWgdTSk2RZNHXbqsLGPW3SFhNackE08Lx5ScYg/R70heH8Np42voj60BbyyJR+OGwfMUKPPdCaxcijSfw1A5O53DZ/DMYFiESjXe5SzKKFAYQn2sovy3LckZ82FJqVjgZ0I8r9KgT/P86AGiLeI+WFtPRyoXybrxdrM1Th44IHHAdceHAA707Cs4to2n4+uhIs/F41JM2ge6agR7Q9hDSCuBV6e4E+jrAsyyRo4nu3FEqzzw691 eric@example.com"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, sshkeys.Validate(ed25519Key))
	assert.NoError(t, sshkeys.Validate(rsaKey))

	err := sshkeys.Validate("not an ssh key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ssh public key")
}

func TestFingerprint(t *testing.T) {
	fp, err := sshkeys.Fingerprint(ed25519Key)
	require.NoError(t, err)
	assert.Equal(t, "9f:eb:e6:51:5d:36:41:44:dd:fd:bd:62:fa:0e:c0:db", fp)

	fp, err = sshkeys.Fingerprint(rsaKey)
	require.NoError(t, err)
	assert.Equal(t, "19:be:7a:e6:78:5f:16:f4:51:52:71:e4:84:d5:90:c9", fp)
}

func TestFingerprint_Invalid(t *testing.T) {
	_, err := sshkeys.Fingerprint("garbage")
	assert.Error(t, err)
}
