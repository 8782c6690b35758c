package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
)

// Теги типов значений
const (
	tagNull   = "n"
	tagInt    = "i"
	tagUint   = "u"
	tagFloat  = "f"
	tagBool   = "b"
	tagTime   = "t"
	tagBytes  = "x"
	tagString = "s"
)

type wireValue struct {
	K string `json:"k"`
	T string `json:"t"`
	V string `json:"v,omitempty"`
}

type wireResult struct {
	Columns   []string      `json:"columns"`
	Rows      [][]wireValue `json:"rows"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Encode сериализует результат. Целые, вещественные, время и байты
// восстанавливаются Decode в исходных Go-типах (int64, uint64, float64,
// time.Time, []byte).
func Encode(res *rowset.Result) ([]byte, error) {
	w := wireResult{
		Columns:   res.Columns,
		Rows:      make([][]wireValue, len(res.Rows)),
		Truncated: res.Truncated,
	}
	for i, row := range res.Rows {
		vals := make([]wireValue, 0, row.Len())
		row.Each(func(k string, v any) {
			t, s := encodeValue(v)
			vals = append(vals, wireValue{K: k, T: t, V: s})
		})
		w.Rows[i] = vals
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return payload, nil
}

func encodeValue(v any) (string, string) {
	switch x := v.(type) {
	case nil:
		return tagNull, ""
	case int:
		return tagInt, strconv.FormatInt(int64(x), 10)
	case int8:
		return tagInt, strconv.FormatInt(int64(x), 10)
	case int16:
		return tagInt, strconv.FormatInt(int64(x), 10)
	case int32:
		return tagInt, strconv.FormatInt(int64(x), 10)
	case int64:
		return tagInt, strconv.FormatInt(x, 10)
	case uint:
		return tagUint, strconv.FormatUint(uint64(x), 10)
	case uint8:
		return tagUint, strconv.FormatUint(uint64(x), 10)
	case uint16:
		return tagUint, strconv.FormatUint(uint64(x), 10)
	case uint32:
		return tagUint, strconv.FormatUint(uint64(x), 10)
	case uint64:
		return tagUint, strconv.FormatUint(x, 10)
	case float32:
		return tagFloat, strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return tagFloat, strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return tagBool, strconv.FormatBool(x)
	case time.Time:
		return tagTime, x.Format(time.RFC3339Nano)
	case []byte:
		return tagBytes, base64.StdEncoding.EncodeToString(x)
	case string:
		return tagString, x
	default:
		return tagString, fmt.Sprint(x)
	}
}

// Decode восстанавливает результат из Encode
func Decode(payload []byte) (*rowset.Result, error) {
	var w wireResult
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	res := &rowset.Result{
		Columns:   w.Columns,
		Rows:      make([]*rowset.Row, len(w.Rows)),
		Truncated: w.Truncated,
	}
	for i, vals := range w.Rows {
		row := rowset.NewRow(len(vals))
		for _, wv := range vals {
			v, err := decodeValue(wv)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", wv.K, err)
			}
			row.Set(wv.K, v)
		}
		res.Rows[i] = row
	}
	return res, nil
}

func decodeValue(wv wireValue) (any, error) {
	switch wv.T {
	case tagNull:
		return nil, nil
	case tagInt:
		return strconv.ParseInt(wv.V, 10, 64)
	case tagUint:
		return strconv.ParseUint(wv.V, 10, 64)
	case tagFloat:
		return strconv.ParseFloat(wv.V, 64)
	case tagBool:
		return strconv.ParseBool(wv.V)
	case tagTime:
		return time.Parse(time.RFC3339Nano, wv.V)
	case tagBytes:
		return base64.StdEncoding.DecodeString(wv.V)
	case tagString:
		return wv.V, nil
	default:
		return nil, fmt.Errorf("unknown value tag %q", wv.T)
	}
}
