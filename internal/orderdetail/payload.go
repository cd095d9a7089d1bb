package orderdetail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Response is the envelope returned by the session collaborator's detail call.
type Response struct {
	Data json.RawMessage `json:"data"`
}

// Payload is the subset of the marketplace order-detail document the tracker reads.
type Payload struct {
	Status     Scalar      `json:"status"`
	ItemID     Scalar      `json:"itemId"`
	PeerUserID Scalar      `json:"peerUserId"`
	UtArgs     UtArgs      `json:"utArgs"`
	Components []Component `json:"components"`
}

type UtArgs struct {
	OrderMainTitle Scalar `json:"orderMainTitle"`
}

type Component struct {
	Render string          `json:"render"`
	Data   json.RawMessage `json:"data"`
}

// OrderInfo is the data block of the "orderInfoVO" component.
type OrderInfo struct {
	ItemInfo      *ItemInfo `json:"itemInfo"`
	OrderInfoList []InfoRow `json:"orderInfoList"`
	PriceInfo     struct {
		Amount struct {
			Value Scalar `json:"value"`
		} `json:"amount"`
	} `json:"priceInfo"`
}

// InfoRow is one titled line of the order summary, e.g. {"title":"买家昵称","value":"..."}.
type InfoRow struct {
	Title Scalar `json:"title"`
	Value Scalar `json:"value"`
}

const orderInfoRender = "orderInfoVO"

// OrderInfo decodes the first orderInfoVO component, or returns nil when absent.
func (p *Payload) OrderInfo() (*OrderInfo, error) {
	for _, c := range p.Components {
		if c.Render != orderInfoRender || len(c.Data) == 0 {
			continue
		}
		var info OrderInfo
		if err := json.Unmarshal(c.Data, &info); err != nil {
			return nil, fmt.Errorf("decode %s: %w", orderInfoRender, err)
		}
		return &info, nil
	}
	return nil, nil
}

// Row returns the value of the first row titled exactly title.
func (o *OrderInfo) Row(title string) string {
	if o == nil {
		return ""
	}
	for _, r := range o.OrderInfoList {
		if r.Title.String() == title {
			return r.Value.String()
		}
	}
	return ""
}

// Scalar accepts a JSON string, number or boolean and keeps its text. Upstream
// sends identifiers and amounts as either strings or numbers.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(v)
	case b[0] == '{' || b[0] == '[':
		*s = ""
	default:
		*s = Scalar(b)
	}
	return nil
}

func (s Scalar) String() string {
	return strings.TrimSpace(string(s))
}

// ItemInfo keeps the item object's fields in document order so key-based
// heuristics scan them deterministically.
type ItemInfo struct {
	fields []itemField
}

type itemField struct {
	key   string
	value json.RawMessage
}

func (i *ItemInfo) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("itemInfo: expected object, got %v", tok)
	}
	i.fields = i.fields[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("itemInfo: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		i.fields = append(i.fields, itemField{key: key, value: raw})
	}
	_, err = dec.Token()
	return err
}

// Keys returns the field names in document order.
func (i *ItemInfo) Keys() []string {
	if i == nil {
		return nil
	}
	keys := make([]string, len(i.fields))
	for n, f := range i.fields {
		keys[n] = f.key
	}
	return keys
}

// String returns the value of key when it is a JSON string.
func (i *ItemInfo) String(key string) (string, bool) {
	if i == nil {
		return "", false
	}
	for n := len(i.fields) - 1; n >= 0; n-- {
		if i.fields[n].key != key {
			continue
		}
		var v string
		if err := json.Unmarshal(i.fields[n].value, &v); err != nil {
			return "", false
		}
		return v, true
	}
	return "", false
}

// Scalar returns the value of key when it is a string or a number.
func (i *ItemInfo) Scalar(key string) string {
	if i == nil {
		return ""
	}
	for n := len(i.fields) - 1; n >= 0; n-- {
		if i.fields[n].key != key {
			continue
		}
		var v Scalar
		if err := json.Unmarshal(i.fields[n].value, &v); err != nil {
			return ""
		}
		return v.String()
	}
	return ""
}
