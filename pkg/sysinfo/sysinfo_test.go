package sysinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOSRelease(t *testing.T) {
	data := `PRETTY_NAME="Ubuntu 24.04 LTS"
NAME="Ubuntu"
VERSION_ID="24.04"
VERSION="24.04 LTS (Noble Numbat)"
# comment
ID=ubuntu
`
	name, version := parseOSRelease(strings.NewReader(data))
	require.Equal(t, "Ubuntu", name)
	require.Equal(t, "24.04 LTS (Noble Numbat)", version)

	name, version = parseOSRelease(strings.NewReader("ID=alpine\n"))
	require.Equal(t, "unknown", name)
	require.Equal(t, "unknown", version)
}

func TestStat(t *testing.T) {
	info := Stat()
	require.Equal(t, runtime.GOOS, info.OS)
	require.Equal(t, runtime.GOARCH, info.Arch)
	require.Equal(t, runtime.Version(), info.GoVersion)
	require.NotEmpty(t, info.Hostname)
}
