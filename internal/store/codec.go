package store

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/pkg/types"
)

// Persisted payloads carry a one-letter type tag per cell so the decode side
// restores the exact in-memory kinds; plain JSON would collapse int64 into
// float64 and lose datetimes entirely. Integers and datetimes travel as
// strings because JSON numbers degrade beyond 2^53.

type storedRow struct {
	ID      int64                 `json:"id"`
	Payload map[string]storedCell `json:"payload"`
}

type storedCell struct {
	T string      `json:"t"`
	V interface{} `json:"v,omitempty"`
}

func encodeRows(rows []*types.Row) ([]byte, error) {
	out := make([]storedRow, len(rows))
	for i, row := range rows {
		sr := storedRow{ID: int64(row.ID), Payload: make(map[string]storedCell, len(row.Payload))}
		for name, v := range row.Payload {
			cell, err := encodeCell(v)
			if err != nil {
				return nil, err
			}
			sr.Payload[name] = cell
		}
		out[i] = sr
	}
	return json.Marshal(out)
}

func decodeRows(data []byte) ([]*types.Row, error) {
	var stored []storedRow
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.NewStore(err, "corrupt row data")
	}
	rows := make([]*types.Row, len(stored))
	for i, sr := range stored {
		payload := make(map[string]interface{}, len(sr.Payload))
		for name, cell := range sr.Payload {
			v, err := decodeCell(cell)
			if err != nil {
				return nil, err
			}
			payload[name] = v
		}
		rows[i] = types.NewRow(types.RowID(sr.ID), payload)
	}
	return rows, nil
}

func encodeCell(v interface{}) (storedCell, error) {
	switch val := v.(type) {
	case nil:
		return storedCell{T: "0"}, nil
	case int64:
		return storedCell{T: "i", V: strconv.FormatInt(val, 10)}, nil
	case float64:
		return storedCell{T: "n", V: val}, nil
	case string:
		return storedCell{T: "s", V: val}, nil
	case bool:
		return storedCell{T: "b", V: val}, nil
	case time.Time:
		return storedCell{T: "d", V: strconv.FormatInt(val.UnixNano(), 10)}, nil
	case []byte:
		return storedCell{T: "x", V: base64.StdEncoding.EncodeToString(val)}, nil
	}
	return storedCell{}, errors.New(errors.CodeType, "unsupported payload value %v", v)
}

func decodeCell(c storedCell) (interface{}, error) {
	switch c.T {
	case "0":
		return nil, nil
	case "i":
		s, ok := c.V.(string)
		if !ok {
			return nil, errors.New(errors.CodeStore, "corrupt integer cell")
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.NewStore(err, "corrupt integer cell")
		}
		return n, nil
	case "n":
		n, ok := c.V.(float64)
		if !ok {
			return nil, errors.New(errors.CodeStore, "corrupt number cell")
		}
		return n, nil
	case "s":
		s, ok := c.V.(string)
		if !ok {
			return nil, errors.New(errors.CodeStore, "corrupt string cell")
		}
		return s, nil
	case "b":
		b, ok := c.V.(bool)
		if !ok {
			return nil, errors.New(errors.CodeStore, "corrupt boolean cell")
		}
		return b, nil
	case "d":
		s, ok := c.V.(string)
		if !ok {
			return nil, errors.New(errors.CodeStore, "corrupt datetime cell")
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.NewStore(err, "corrupt datetime cell")
		}
		return time.Unix(0, n).UTC(), nil
	case "x":
		s, ok := c.V.(string)
		if !ok {
			return nil, errors.New(errors.CodeStore, "corrupt bytes cell")
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.NewStore(err, "corrupt bytes cell")
		}
		return raw, nil
	}
	return nil, errors.New(errors.CodeStore, "unknown cell tag %q", c.T)
}

func encodeMetadata(m *Metadata) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.NewStore(err, "corrupt metadata entry")
	}
	if m.HighWaterMarks == nil {
		m.HighWaterMarks = make(map[string]types.RowID)
	}
	return &m, nil
}
