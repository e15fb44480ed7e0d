// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package sysinfo

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strings"
)

const osReleasePath = "/etc/os-release"

// SysInfo holds the details of the host a process runs on.
type SysInfo struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Release   string `json:"release"` // e.g. "Ubuntu"
	Version   string `json:"version"` // e.g. "24.04 LTS (Noble Numbat)"
	Hostname  string `json:"hostname"`
	GoVersion string `json:"go_version"`
}

// Stat gathers information about the host. Details which cannot be
// determined are reported as "unknown".
func Stat() SysInfo {
	info := SysInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Release:   "unknown",
		Version:   "unknown",
		Hostname:  "unknown",
		GoVersion: runtime.Version(),
	}

	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}

	if runtime.GOOS == "linux" {
		if f, err := os.Open(osReleasePath); err == nil {
			defer f.Close()
			info.Release, info.Version = parseOSRelease(f)
		}
	}
	return info
}

// parseOSRelease extracts NAME and VERSION from an os-release file.
func parseOSRelease(r io.Reader) (name, version string) {
	name, version = "unknown", "unknown"

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}

		value = strings.Trim(value, `"'`)
		switch key {
		case "NAME":
			name = value
		case "VERSION":
			version = value
		}
	}
	return name, version
}
