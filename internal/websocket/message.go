package websocket

import (
	"encoding/json"
	"time"

	"github.com/tariel-x/referral/internal/models"
)

const TypeClick = "click"

type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ClickData struct {
	LinkCode   string    `json:"link_code"`
	ClickedAt  time.Time `json:"clicked_at"`
	ClickCount int       `json:"click_count"`
}

func EncodeClick(link models.ReferralLink, click models.ReferralClick) ([]byte, error) {
	data, err := json.Marshal(ClickData{
		LinkCode:   link.LinkCode,
		ClickedAt:  click.ClickedAt,
		ClickCount: link.ClickCount,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: TypeClick, Data: data})
}
