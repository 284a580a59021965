package product

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// encodeProduct writes p as a JSON object. Prices are written as strings so
// they survive the round trip without float conversion.
func encodeProduct(e *jx.Encoder, p *Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	e.Str(p.Price.String())
	e.FieldStart("is_active")
	e.Bool(p.IsActive)
	e.FieldStart("category_id")
	encodeOptInt64(e, p.CategoryID)
	e.FieldStart("brand_id")
	encodeOptInt64(e, p.BrandID)
	e.FieldStart("created_at")
	e.Str(p.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("updated_at")
	e.Str(p.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

func encodeOptInt64(e *jx.Encoder, v *int64) {
	if v == nil {
		e.Null()
		return
	}
	e.Int64(*v)
}

func decodeProduct(d *jx.Decoder, p *Product) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "price":
			var s string
			if s, err = d.Str(); err == nil {
				p.Price, err = decimal.NewFromString(s)
			}
		case "is_active":
			p.IsActive, err = d.Bool()
		case "category_id":
			p.CategoryID, err = decodeOptInt64(d)
		case "brand_id":
			p.BrandID, err = decodeOptInt64(d)
		case "created_at":
			p.CreatedAt, err = decodeTime(d)
		case "updated_at":
			p.UpdatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func decodeOptInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

// marshalProduct returns the cache representation of a single product.
func marshalProduct(p *Product) string {
	var e jx.Encoder
	encodeProduct(&e, p)
	return string(e.Bytes())
}

func unmarshalProduct(data string) (*Product, error) {
	var p Product
	if err := decodeProduct(jx.DecodeStr(data), &p); err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	return &p, nil
}

// marshalProducts returns the cache representation of a product list.
func marshalProducts(products []Product) string {
	var e jx.Encoder
	e.ArrStart()
	for i := range products {
		encodeProduct(&e, &products[i])
	}
	e.ArrEnd()
	return string(e.Bytes())
}

func unmarshalProducts(data string) ([]Product, error) {
	products := make([]Product, 0)
	err := jx.DecodeStr(data).Arr(func(d *jx.Decoder) error {
		var p Product
		if err := decodeProduct(d, &p); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}
