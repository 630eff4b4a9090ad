package notify

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/imutis/imutis-api/internal/security"
)

const (
	closeUnauthorized = 4401
	closeForbidden    = 4403
	readLimit         = 4 << 10
	pongTimeout       = 3 * keepaliveInterval
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a websocket and streams notifications for
// the authenticated user. The token is read from the "token" query parameter
// or the Authorization header; an invalid token closes with 4401.
func (h *Hub) ServeWS(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := wsToken(c)
		conn, errUpgrade := upgrader.Upgrade(c.Writer, c.Request, nil)
		if errUpgrade != nil {
			log.WithError(errUpgrade).Warn("websocket upgrade failed")
			return
		}
		claims, errParse := security.ParseUserToken(secret, raw)
		if errParse != nil {
			closeWith(conn, closeUnauthorized, "unauthorized")
			return
		}
		if claims.UserID == 0 {
			closeWith(conn, closeForbidden, "forbidden")
			return
		}

		cl := newClient(conn)
		h.register(claims.UserID, cl)
		defer func() {
			h.unregister(claims.UserID, cl)
			cl.close()
		}()

		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})

		go cl.writeLoop()

		// Clients do not send application messages; the read loop only
		// services control frames and detects disconnects.
		for {
			if _, _, errRead := conn.ReadMessage(); errRead != nil {
				return
			}
		}
	}
}

func wsToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}
