package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServeHTTP is the /ws endpoint. The credential comes from an
// "Authorization: Bearer" header or the access_token query parameter and is
// verified before the upgrade, so a rejected client gets a plain 401 (or 503
// when the identity provider is down) and no socket is left open.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := identity.BearerToken(r)
	if credential == "" {
		credential = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}

	if m.isClosed() {
		apierr.Write(w, m.log, errShuttingDown)
		return
	}

	c := newConn(m.sendBuffer)
	if err := m.Authenticate(r.Context(), c, credential); err != nil {
		apierr.Write(w, m.log, err)
		return
	}

	ws, err := m.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		m.log.Debug("websocket upgrade failed", zap.Error(err))
		c.setState(StateClosed)
		return
	}
	c.ws = ws

	if err := m.register(c, 2); err != nil {
		c.setState(StateClosed)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	acct := c.Account()
	m.log.Debug("websocket connected",
		zap.String("conn", c.id),
		zap.String("account", acct.ID.Hex()))

	go c.writePump(m)
	go c.readPump(m)
}

var errShuttingDown = apierr.New(apierr.Upstream, "realtime service is shutting down")

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      m.checkOrigin,
	}
}

// checkOrigin allows requests without an Origin header (non-browser clients
// authenticate with a bearer token, not a cookie) and otherwise requires a
// match against the configured origins. An empty list or "*" allows any.
func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(m.origins) == 0 {
		return true
	}
	for _, allowed := range m.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	m.log.Warn("websocket origin rejected", zap.String("origin", origin))
	return false
}
