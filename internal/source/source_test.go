package source

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/qbdeploy/internal/config"
	"git.home.luguber.info/inful/qbdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/qbdeploy/internal/retry"
)

func TestDecode(t *testing.T) {
	b, err := Decode("aGVs\nbG8g\r\nd29y bGQ=\n")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))

	b, err = Decode("")
	require.NoError(t, err)
	assert.Empty(t, b)

	_, err = Decode("!!!")
	require.Error(t, err)

	assert.Equal(t, "aGk=", Encode([]byte("hi")))
}

func TestLocation(t *testing.T) {
	loc := Location{Owner: "acme", Repo: "portal", Path: "qbcli.json", Ref: "main"}
	assert.Equal(t, "acme/portal@main:qbcli.json", loc.String())
	assert.Equal(t, "dist/a.js", loc.WithPath("dist/a.js").Path)
	assert.Equal(t, "qbcli.json", loc.Path, "WithPath copies")
}

func TestRetrying(t *testing.T) {
	calls := 0
	flaky := FetcherFunc(func(context.Context, Location) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.NetworkError("reset").Build()
		}
		return "aGk=", nil
	})

	p := retry.NewPolicy(config.BackoffFixed, time.Millisecond, time.Millisecond, 1)
	got, err := Retrying(flaky, p).GetFileContent(context.Background(), Location{})
	require.NoError(t, err)
	assert.Equal(t, "aGk=", got)
	assert.Equal(t, 2, calls)
}

func TestRetrying_DefaultPolicyPassesThrough(t *testing.T) {
	calls := 0
	failing := FetcherFunc(func(context.Context, Location) (string, error) {
		calls++
		return "", stderrors.New("boom")
	})

	_, err := Retrying(failing, retry.DefaultPolicy()).GetFileContent(context.Background(), Location{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
