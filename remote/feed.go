package remote

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/internal/httpclient"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/sync"
)

var _ sync.ChangeSource = (*ChangeFeed)(nil)

// ChangeFeed subscribes to the remote's websocket change notifications
type ChangeFeed struct {
	client *Client
	dialer *websocket.Dialer
}

// Changes returns the client's change feed
func (c *Client) Changes() *ChangeFeed {
	return &ChangeFeed{
		client: c,
		dialer: &websocket.Dialer{HandshakeTimeout: c.http.Timeout},
	}
}

// Subscribe dials the feed. The returned channel closes when the
// connection drops or ctx ends.
func (f *ChangeFeed) Subscribe(ctx context.Context) (<-chan sync.Change, error) {
	u := httpclient.WebsocketURL(f.client.base).String() + PathChanges

	header := http.Header{}
	if f.client.token != "" {
		header.Set("Authorization", "Bearer "+f.client.token)
	}

	conn, resp, err := f.dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.NewAuthError("change feed rejected the session")
		}
		return nil, errors.Wrap(err, "failed to dial change feed")
	}

	log := f.client.logger
	changes := make(chan sync.Change, 16)
	go func() {
		defer close(changes)
		defer conn.Close()
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		for {
			var c sync.Change
			if err := conn.ReadJSON(&c); err != nil {
				if ctx.Err() == nil {
					log.Debugw("Change feed closed", logger.FieldError, err)
				}
				return
			}
			select {
			case changes <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Debugw("Change feed connected", logger.FieldURL, u)
	return changes, nil
}
