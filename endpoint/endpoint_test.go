package endpoint_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/endpoint"
)

func TestCLI_DeliverWritesLine(t *testing.T) {
	var buf bytes.Buffer
	cli := endpoint.NewCLI(&buf)

	require.NoError(t, cli.Deliver(context.Background(), "hello"))
	assert.Equal(t, "hello\n", buf.String())
}

func TestBroadcast_DeliversToAllMembers(t *testing.T) {
	var a, b bytes.Buffer
	bc := endpoint.NewBroadcast(endpoint.NewCLI(&a), endpoint.NewCLI(&b))

	require.NoError(t, bc.Deliver(context.Background(), "hi"))
	assert.Equal(t, "hi\n", a.String())
	assert.Equal(t, "hi\n", b.String())
}

func TestBroadcast_JoinsMemberErrors(t *testing.T) {
	failing := endpoint.Func(func(context.Context, string) error {
		return errors.New("boom")
	})
	bc := endpoint.NewBroadcast(failing, failing)

	err := bc.Deliver(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFunc_AdaptsPlainFunction(t *testing.T) {
	var got string
	f := endpoint.Func(func(_ context.Context, message string) error {
		got = message
		return nil
	})

	require.NoError(t, f.Deliver(context.Background(), "delivered"))
	assert.Equal(t, "delivered", got)
}
