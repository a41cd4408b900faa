package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSyncInterval(t *testing.T) {
	interval, err := parseSyncInterval("10s")
	assert.NoError(t, err)
	assert.Equal(t, time.Second*10, interval)

	for _, value := range []string{"0s", "0", "-5s", "soon"} {
		_, err := parseSyncInterval(value)
		assert.Errorf(t, err, "sync interval %q should be rejected", value)
	}
}
