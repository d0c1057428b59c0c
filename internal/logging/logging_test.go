package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationIDRoundTripsThroughContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-1")
	assert.Equal(t, "corr-1", CorrelationID(ctx))
}

func TestCorrelationIDIsEmptyWhenNeverSet(t *testing.T) {
	assert.Equal(t, "", CorrelationID(context.Background()))
}
