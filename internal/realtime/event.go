package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventResync рассылается всем подписчикам, когда источник мог потерять уведомления
	EventResync EventType = "RESYNC"
)

var AllEvents = []EventType{EventInsert, EventUpdate, EventDelete}

// Event: уведомление об изменении строки таблицы
type Event struct {
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// ParseEvent разбирает JSON-уведомление формата {table, type, new, old}.
// RESYNC приходит от ретранслятора, когда тот сам мог потерять уведомления.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, errors.Wrap(err, "decode change event")
	}
	switch ev.Type {
	case EventInsert, EventUpdate, EventDelete, EventResync:
	default:
		return ev, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.Table == "" {
		return ev, errors.New("change event without table")
	}
	return ev, nil
}

func (e Event) NewRow() (Row, error) { return DecodeRow(e.New) }
func (e Event) OldRow() (Row, error) { return DecodeRow(e.Old) }

// RowID: id затронутой строки, из новой строки или, для DELETE, из старой
func (e Event) RowID() string {
	for _, raw := range []json.RawMessage{e.New, e.Old} {
		row, err := DecodeRow(raw)
		if err != nil || row == nil {
			continue
		}
		if id, ok := row.String("id"); ok {
			return id
		}
	}
	return ""
}

// Row: строка таблицы в виде колонок. Числа хранятся как json.Number.
type Row map[string]any

func DecodeRow(raw json.RawMessage) (Row, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, errors.Wrap(err, "decode row")
	}
	return row, nil
}

// Has сообщает, присутствует ли колонка в строке (значение может быть null)
func (r Row) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// String возвращает значение колонки строкой; false для отсутствующей колонки и null
func (r Row) String(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Filter: равенство колонки значению, как фильтр подписки
type Filter struct {
	Column string
	Value  string
}

func Eq(column, value string) *Filter {
	return &Filter{Column: column, Value: value}
}

// Match: nil-фильтр пропускает всё
func (f *Filter) Match(row Row) bool {
	if f == nil {
		return true
	}
	v, ok := row.String(f.Column)
	return ok && v == f.Value
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.Column + "=eq." + f.Value
}
