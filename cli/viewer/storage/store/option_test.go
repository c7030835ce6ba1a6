package store

import (
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestOptionValue(t *testing.T) {
	log.SetOutput(io.Discard)

	settings := map[string]string{"host": "redis.local", "db": "3", "ttl_sec": "soon"}

	assert.Equal(t, "redis.local", OptionValue("host", "localhost", settings))
	assert.Equal(t, "6379", OptionValue("port", "6379", settings))
	assert.Equal(t, "6379", OptionValue("port", "6379", nil))

	db, err := IntOption("db", 0, settings)
	assert.NoError(t, err)
	assert.Equal(t, 3, db)

	ttl, err := IntOption("missing", 600, settings)
	assert.NoError(t, err)
	assert.Equal(t, 600, ttl)

	_, err = IntOption("ttl_sec", 600, settings)
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	assert.Equal(t, "4BAB45", Token("4BAB45"))
	assert.Equal(t, "a_b_c__", Token("a.b c*>"))
}
