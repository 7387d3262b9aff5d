package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"muster/internal/common"
)

// Webhook posts audit rows to a spreadsheet web endpoint, one JSON body
// per row. Delivery is fire-and-forget: dropped rows are logged and lost
type Webhook struct {
	url string
	// The proxy's rate limiter keeps mutable history, so posts take turns
	mu    sync.Mutex
	proxy common.Proxy
}

func NewWebhook(url string) *Webhook {
	// Sheet endpoints throttle hard, so stay well under one row a second
	restrictions := []common.Restriction{
		{Requests: 30, Duration: time.Minute},
	}
	return &Webhook{
		url:   url,
		proxy: common.NewProxy(map[string]string{}, restrictions, time.Minute),
	}
}

type webhookRow struct {
	RequestID  string `json:"request_id"`
	Timestamp  string `json:"timestamp"`
	GuildID    int64  `json:"guild_id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	EventID    string `json:"event_id"`
	EventTitle string `json:"event_title"`
	EventTime  string `json:"event_time"`
	SlotID     string `json:"role_id"`
	SlotName   string `json:"role_name"`
	Action     string `json:"action"`
}

func (w *Webhook) Record(entry Entry) {
	stamp := entry.Stamp
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	row := webhookRow{
		RequestID:  uuid.NewString(),
		Timestamp:  stamp.UTC().Format(time.RFC3339),
		GuildID:    entry.GuildID,
		UserID:     entry.UserID,
		Username:   entry.Username,
		EventID:    entry.EventID,
		EventTitle: entry.EventTitle,
		EventTime:  entry.EventTime,
		SlotID:     entry.SlotID,
		SlotName:   entry.SlotName,
		Action:     string(entry.Action),
	}
	payload, err := json.Marshal(row)
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not encode audit row: %s", err))
		return
	}
	// Post in the background so a slow endpoint never delays a signup
	go func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.proxy.Post(w.url, payload) == nil {
			log.Debug().Msg(fmt.Sprintf("Audit row for user %s dropped", entry.UserID))
		}
	}()
}
