package binance

import (
	"strings"
	"time"

	"github.com/yanun0323/decimal"

	"tickrec/internal/feed"
	"tickrec/internal/model"
)

// streamMessage covers the trade and bookTicker stream payloads. Trades carry
// an event type, book tickers do not.
type streamMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`

	TradeID    int64           `json:"t"`
	Price      decimal.Decimal `json:"p"`
	Quantity   decimal.Decimal `json:"q"`
	TradeTime  int64           `json:"T"`
	BuyerMaker bool            `json:"m"`

	UpdateID int64           `json:"u"`
	BidPrice decimal.Decimal `json:"b"`
	BidQty   decimal.Decimal `json:"B"`
	AskPrice decimal.Decimal `json:"a"`
	AskQty   decimal.Decimal `json:"A"`
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func streamNames(key string, streams []string) []string {
	sym := strings.ToLower(key)
	out := make([]string, 0, len(streams))
	for _, s := range streams {
		out = append(out, sym+"@"+s)
	}
	return out
}

// toEvent converts a stream payload into a data event. Field names follow the
// vendor style used across recorded files.
func toEvent(msg streamMessage, received time.Time) (feed.DataEvent, bool) {
	if msg.Symbol == "" {
		return feed.DataEvent{}, false
	}
	key := strings.ToUpper(msg.Symbol)

	var fields model.Fields
	switch {
	case msg.EventType == "trade":
		fields = model.NewFields(
			model.Field{Name: model.FieldEventTime, Value: model.Int(msg.TradeTime)},
			model.Field{Name: "LAST_PRICE", Value: model.Decimal(msg.Price)},
			model.Field{Name: "SIZE_LAST_TRADE", Value: model.Decimal(msg.Quantity)},
			model.Field{Name: "TRADE_ID", Value: model.Int(msg.TradeID)},
			model.Field{Name: "BUYER_MAKER", Value: model.Bool(msg.BuyerMaker)},
		)
	case msg.EventType == "" && msg.UpdateID != 0:
		fields = model.NewFields(
			model.Field{Name: "BID", Value: model.Decimal(msg.BidPrice)},
			model.Field{Name: "BID_SIZE", Value: model.Decimal(msg.BidQty)},
			model.Field{Name: "ASK", Value: model.Decimal(msg.AskPrice)},
			model.Field{Name: "ASK_SIZE", Value: model.Decimal(msg.AskQty)},
			model.Field{Name: "UPDATE_ID", Value: model.Int(msg.UpdateID)},
		)
	default:
		return feed.DataEvent{}, false
	}

	return feed.DataEvent{Key: key, ReceivedAt: received, Fields: fields}, true
}
