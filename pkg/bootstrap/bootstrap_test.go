package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStart_EmptyAddrIsNoop(t *testing.T) {
	assert.Nil(t, StartMetrics(context.Background(), ""))
	assert.Nil(t, StartPprof(context.Background(), ""))
	Shutdown(time.Second, nil, nil)
}

func TestStartMetrics_Shutdown(t *testing.T) {
	srv := StartMetrics(context.Background(), "127.0.0.1:0")
	assert.NotNil(t, srv)
	Shutdown(time.Second, srv)
}
