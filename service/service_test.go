package service

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestTraderConfigValidate(t *testing.T) {
	cfg := &TraderConfig{}
	err := cfg.Validate()
	assert.Error(t, err)

	cfg = &TraderConfig{
		Markets:    []string{"ES"},
		FeedURL:    "wss://example.com/feed",
		DBEndpoint: "http://localhost:4001",
		Cancel:     func() {},
	}
	assert.NoError(t, cfg.Validate())
}
