package util

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetQueryParam(t *testing.T) {
	u, err := url.Parse("kafka://localhost:9092/escrow-events?partitions=4&replication=abc&retention=1000")
	require.NoError(t, err)

	assert.Equal(t, "1000", GetQueryParam(u, "retention", "600000"))
	assert.Equal(t, "fallback", GetQueryParam(u, "missing", "fallback"))
	assert.Equal(t, "fallback", GetQueryParam(nil, "missing", "fallback"))

	assert.Equal(t, 4, GetQueryParamInt(u, "partitions", 1))
	assert.Equal(t, 1, GetQueryParamInt(u, "replication", 1))
	assert.Equal(t, 7, GetQueryParamInt(u, "flush_bytes", 7))
}
