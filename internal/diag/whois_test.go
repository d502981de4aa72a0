package diag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhoisHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Whois(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
