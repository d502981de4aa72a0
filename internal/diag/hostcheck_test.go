package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidHost(t *testing.T) {
	valid := []string{
		"example.com",
		"sub.example.co.uk",
		"localhost",
		"a-b.example.org",
		"192.168.1.1",
		"2001:db8::1",
	}
	for _, host := range valid {
		assert.True(t, ValidHost(host), "expected %q to be valid", host)
	}

	invalid := []string{
		"",
		"-example.com",
		"example.com; rm -rf /",
		"example.com|cat /etc/passwd",
		"$(whoami).com",
		"exa`mple.com",
		"host with spaces",
		"end-with-hyphen-.com",
	}
	for _, host := range invalid {
		assert.False(t, ValidHost(host), "expected %q to be invalid", host)
	}
}
