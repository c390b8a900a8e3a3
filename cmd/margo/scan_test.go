package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCorpus = `
0	string	MATLAB	Matlab v
>7	string	5	\bersion 5 mat-file
!:mime	application/x-matlab-data
!:ext	mat
`

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	corpus := writeTemp(t, "test.magic", []byte(testCorpus))
	target := writeTemp(t, "sample.mat", []byte("MATLAB 5.0 MAT-file"))

	out, err := execute(t, "scan", "-m", corpus, target)
	require.NoError(t, err)
	assert.Contains(t, out, "Matlab version 5 mat-file")
	assert.Contains(t, out, "[application/x-matlab-data]")
	assert.Contains(t, out, "(mat)")
}

func TestScanCommandNoMatch(t *testing.T) {
	corpus := writeTemp(t, "test.magic", []byte(testCorpus))
	target := writeTemp(t, "unknown.bin", []byte{0xde, 0xad, 0xbe, 0xef})

	out, err := execute(t, "scan", "-m", corpus, target)
	require.NoError(t, err)
	assert.Contains(t, out, "unknown.bin: data")
}

func TestScanCommandMime(t *testing.T) {
	corpus := writeTemp(t, "test.magic", []byte(testCorpus))
	target := writeTemp(t, "sample.mat", []byte("MATLAB 5.0 MAT-file"))

	out, err := execute(t, "scan", "-m", corpus, "--mime", target)
	require.NoError(t, err)
	assert.Contains(t, out, "application/x-matlab-data")
	assert.NotContains(t, out, "Matlab version")

	showMime = false
}

func TestScanCommandBadCorpus(t *testing.T) {
	corpus := writeTemp(t, "bad.magic", []byte("0\tstring\tMZ\tok\n>>2\tbyte\t0\tjump"))
	target := writeTemp(t, "sample", []byte("MZ"))

	_, err := execute(t, "scan", "-m", corpus, target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal level jump")
}

func TestCheckCommand(t *testing.T) {
	corpus := writeTemp(t, "test.magic", []byte(testCorpus))

	out, err := execute(t, "check", corpus)
	require.NoError(t, err)
	assert.Contains(t, out, "1 rules (0 named)")
}
