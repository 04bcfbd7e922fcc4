package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTransport struct {
	name  string
	err   error
	calls int
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(ctx context.Context, communityID, userID, text string) error {
	f.calls++
	return f.err
}

func TestNotifyUserFirstMethodWins(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dm := &fakeTransport{name: "direct message"}
	ping := &fakeTransport{name: "channel ping"}

	out := NotifyUser(ctx, "c1", "user1", "you have been warned", []Transport{dm, ping}, nil)
	assert.True(out.Success)
	assert.Equal("direct message", out.MethodUsed)
	assert.Equal(1, dm.calls)
	// later methods are never attempted after a success
	assert.Equal(0, ping.calls)
}

func TestNotifyUserFallback(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dm := &fakeTransport{name: "direct message", err: errors.New("DMs closed")}
	ping := &fakeTransport{name: "channel ping"}

	out := NotifyUser(ctx, "c1", "user1", "you have been warned", []Transport{dm, ping}, nil)
	assert.True(out.Success)
	assert.Equal("channel ping", out.MethodUsed)
	assert.Equal(1, dm.calls)
	assert.Equal(1, ping.calls)
}

func TestNotifyUserExhaustion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dm := &fakeTransport{name: "direct message", err: errors.New("DMs closed")}
	ping := &fakeTransport{name: "channel ping", err: errors.New("no shared channel")}

	out := NotifyUser(ctx, "c1", "user1", "text", []Transport{dm, ping}, nil)
	assert.False(out.Success)
	assert.Empty(out.MethodUsed)
	// failure text names the last method tried and its error
	assert.Contains(out.Text, "channel ping")
	assert.Contains(out.Text, "no shared channel")
	// each method got exactly one attempt
	assert.Equal(1, dm.calls)
	assert.Equal(1, ping.calls)
}

func TestNotifyUserNoMethods(t *testing.T) {
	assert := assert.New(t)

	out := NotifyUser(context.Background(), "c1", "user1", "text", nil, nil)
	assert.False(out.Success)
	assert.Contains(out.Text, "no contact methods")
}
