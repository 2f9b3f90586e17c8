package refdata

import (
	"context"
	"encoding/hex"
	"strconv"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"tickrec/internal/model"
	"tickrec/pkg/exception"
)

type instrumentRow struct {
	Key        string `gorm:"column:instrument_key;primaryKey"`
	ResolvedID string `gorm:"column:resolved_id"`
}

func (instrumentRow) TableName() string { return "instruments" }

type snapshotRow struct {
	Key      string `gorm:"column:instrument_key"`
	Position int    `gorm:"column:position"`
	Name     string `gorm:"column:field_name"`
	Kind     string `gorm:"column:field_kind"`
	Value    string `gorm:"column:field_value"`
}

func (snapshotRow) TableName() string { return "instrument_snapshots" }

// Postgres reads reference data from the instruments and
// instrument_snapshots tables.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "gorm db")
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Resolve(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	var rows []instrumentRow
	if err := p.db.WithContext(ctx).Where("instrument_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query instruments")
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.ResolvedID != "" {
			out[r.Key] = r.ResolvedID
		}
	}
	for _, key := range keys {
		if _, ok := out[key]; !ok {
			return nil, errors.Wrap(exception.ErrRefDataUnresolved, key)
		}
	}
	return out, nil
}

func (p *Postgres) Snapshot(ctx context.Context, keys []string) (map[string]model.Fields, error) {
	if len(keys) == 0 {
		return map[string]model.Fields{}, nil
	}

	var rows []snapshotRow
	if err := p.db.WithContext(ctx).
		Where("instrument_key IN ?", keys).
		Order("instrument_key, position").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query instrument snapshots")
	}

	out := make(map[string]model.Fields, len(keys))
	for _, r := range rows {
		v, err := ParseValue(r.Kind, r.Value)
		if err != nil {
			logs.Warnf("refdata: skip snapshot field %s.%s, err: %+v", r.Key, r.Name, err)
			continue
		}
		f := out[r.Key]
		f.Set(r.Name, v)
		out[r.Key] = f
	}
	return out, nil
}

// ParseValue builds a field value from its kind name and text form.
func ParseValue(kind, text string) (model.Value, error) {
	switch kind {
	case "", model.KindString.String():
		return model.String(text), nil
	case model.KindInt.String():
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return model.Value{}, errors.Wrap(exception.ErrInvalidArgument, err.Error())
		}
		return model.Int(i), nil
	case model.KindFloat.String():
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return model.Value{}, errors.Wrap(exception.ErrInvalidArgument, err.Error())
		}
		return model.Float(f), nil
	case model.KindBool.String():
		b, err := strconv.ParseBool(text)
		if err != nil {
			return model.Value{}, errors.Wrap(exception.ErrInvalidArgument, err.Error())
		}
		return model.Bool(b), nil
	case model.KindDecimal.String():
		d, ok := model.DecimalString(text).Decimal()
		if !ok {
			return model.Value{}, errors.Wrapf(exception.ErrInvalidArgument, "decimal %q", text)
		}
		return model.Decimal(d), nil
	case model.KindBytes.String():
		b, err := hex.DecodeString(text)
		if err != nil {
			return model.Value{}, errors.Wrap(exception.ErrInvalidArgument, err.Error())
		}
		return model.Bytes(b), nil
	default:
		return model.Value{}, errors.Wrapf(exception.ErrTypeUnsupported, "field kind %q", kind)
	}
}
