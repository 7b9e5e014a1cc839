package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "caja:sesion-activa:T1", Key("T1"))
}

func TestNewSesionCacheDefaultTTL(t *testing.T) {
	c := NewSesionCache(nil, 0)
	assert.Equal(t, 30*time.Second, c.ttl)
}
