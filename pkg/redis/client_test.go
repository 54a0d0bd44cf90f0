package redis

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestIsNil(t *testing.T) {
	assert.True(t, IsNil(redis.Nil))
	assert.True(t, IsNil(fmt.Errorf("get user: %w", ErrNil)))
	assert.False(t, IsNil(errors.New("connection refused")))
	assert.False(t, IsNil(nil))
}

func TestExpirationFallsBackToDefault(t *testing.T) {
	c := New("localhost:6379", "", 0, time.Hour)
	defer c.Close()

	assert.Equal(t, time.Hour, c.expiration(0))
	assert.Equal(t, time.Minute, c.expiration(time.Minute))
}
