package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlibrary/internal/auth"
)

func TestHashPasswordCmd(t *testing.T) {
	var out bytes.Buffer
	hashPasswordCmd.SetIn(strings.NewReader("library-admin\n"))
	hashPasswordCmd.SetOut(&out)
	t.Cleanup(func() {
		hashPasswordCmd.SetIn(nil)
		hashPasswordCmd.SetOut(nil)
	})

	require.NoError(t, hashPasswordCmd.RunE(hashPasswordCmd, nil))

	hash := strings.TrimSpace(out.String())
	assert.True(t, auth.VerifyPassword(hash, "library-admin"))

	g, err := auth.NewGate(auth.Config{PasswordHash: hash, Secret: "s"})
	require.NoError(t, err)
	_, err = g.Login("library-admin")
	assert.NoError(t, err)
}

func TestHashPasswordCmd_Empty(t *testing.T) {
	hashPasswordCmd.SetIn(strings.NewReader("\n"))
	t.Cleanup(func() { hashPasswordCmd.SetIn(nil) })
	assert.Error(t, hashPasswordCmd.RunE(hashPasswordCmd, nil))
}
