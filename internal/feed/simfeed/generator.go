package simfeed

import (
	"strconv"
	"time"

	"tickrec/internal/model"
)

// Generator creates synthetic quote updates, cycling through its keys.
type Generator struct {
	keys      []string
	basePrice int64
	baseSize  int64
	spread    int64
	index     int
	step      int64
}

// NewGenerator creates a generator over keys. Prices are in cents.
func NewGenerator(keys []string, basePrice, baseSize, spread int64) *Generator {
	if baseSize <= 0 {
		baseSize = 1
	}
	if spread < 0 {
		spread = 0
	}
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &Generator{
		keys:      cp,
		basePrice: basePrice,
		baseSize:  baseSize,
		spread:    spread,
	}
}

// Next returns the next key and its update fields.
func (g *Generator) Next(now time.Time) (string, model.Fields) {
	if len(g.keys) == 0 {
		return "", model.Fields{}
	}
	key := g.keys[g.index]
	g.index = (g.index + 1) % len(g.keys)
	if g.index == 0 {
		g.step++
	}
	price := g.basePrice + int64(g.index) + g.step%16

	return key, model.NewFields(
		model.Field{Name: model.FieldEventTime, Value: model.String(now.UTC().Format("15:04:05.000"))},
		model.Field{Name: "LAST_PRICE", Value: model.DecimalString(cents(price))},
		model.Field{Name: "BID", Value: model.Float(float64(price-g.spread) / 100)},
		model.Field{Name: "ASK", Value: model.Float(float64(price+g.spread) / 100)},
		model.Field{Name: "SIZE_LAST_TRADE", Value: model.Int(g.baseSize)},
	)
}

func cents(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v/100, 10) + "." + strconv.FormatInt(100+v%100, 10)[1:]
	if neg {
		return "-" + s
	}
	return s
}
