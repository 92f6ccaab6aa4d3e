package notifyhub

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/moyoez/dropzone-go/tool"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// listeners have nothing to say; a larger frame closes the connection
	maxListenerFrame = 512
)

var upgrader = websocket.Upgrader{
	// the route sits behind OnlyAllowLocal
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleNotifyWS streams upload_complete and upload_cancelled events to local listeners
// such as a tray icon or desktop notifier. Idle listeners are pinged and dropped when
// they stop answering.
func HandleNotifyWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			tool.DefaultLogger.Debugf("[NotifyHub] Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		conn.SetReadLimit(maxListenerFrame)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		hub.Register(conn)
		defer hub.Unregister(conn)
		tool.DefaultLogger.Debugf("[NotifyHub] Listener %s connected (%d total)", conn.RemoteAddr(), hub.Len())

		stop := make(chan struct{})
		defer close(stop)
		go pingLoop(conn, stop)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				tool.DefaultLogger.Debugf("[NotifyHub] Listener %s gone: %v", conn.RemoteAddr(), err)
				return
			}
		}
	}
}

// pingLoop uses WriteControl, which gorilla allows alongside the hub's data writes.
func pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
