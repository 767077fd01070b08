package wsocket

import (
	"context"
	"net/http"
	"time"

	"research_impact_go_backend/internal/models"
	"research_impact_go_backend/internal/services"
	"research_impact_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler streams per-publication refresh progress to the UI while a
// citation refresh batch runs.
type Handler struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	log          zerolog.Logger
}

func NewHandler(upgrader websocket.Upgrader, pingInterval time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		upgrader:     upgrader,
		pingInterval: pingInterval,
		log:          log,
	}
}

// HandleWebSocket subscribes the connection to the researcher's refresh
// topic and forwards every progress event as a JSON frame. The
// connection closes when the client goes away; refresh batches are not
// affected by a dropped listener.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, researcher *models.Researcher, messageBroker *broker.Broker) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topic := services.RefreshTopic(researcher.ID)
	events := messageBroker.Subscribe(topic)
	defer messageBroker.Unsubscribe(topic, events)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					h.log.Debug().Err(err).Msg("websocket write failed")
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Read loop only detects the client closing the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			return
		}
	}
}
