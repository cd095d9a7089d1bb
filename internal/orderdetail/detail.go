package orderdetail

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"xianyu-autosell/internal/domain/order"
	autosell_errors "xianyu-autosell/pkg/errors"

	"github.com/shopspring/decimal"
)

// Detail is a parsed order-detail payload.
type Detail struct {
	Status        order.Status
	StatusText    string
	ItemID        string
	ItemTitle     string
	ItemPicURL    string
	Price         decimal.NullDecimal
	SkuText       string
	BuyerUserID   string
	BuyerNickname string
	OrderTime     string
	PayTime       string
	ShipTime      string
	CompleteTime  string
	// ItemKeys lists the item fields seen, for diagnosing sku misses.
	ItemKeys []string
	// Data is the raw data object as received.
	Data json.RawMessage
}

// Lifecycle resolves the detail's delivery-relevant state.
func (d *Detail) Lifecycle() Lifecycle {
	return Resolve(d.Status, d.StatusText)
}

// Parser turns raw detail responses into Details.
type Parser struct {
	Sku SkuChain
}

func NewParser() *Parser {
	return &Parser{Sku: DefaultSkuChain()}
}

// ParseResponse decodes a {"data": {...}} envelope.
func (p *Parser) ParseResponse(raw []byte) (*Detail, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode order detail: %w", err)
	}
	return p.Parse(resp.Data)
}

// Parse decodes the data object. A missing or null object is ErrEmptyOrderDetail.
func (p *Parser) Parse(data json.RawMessage) (*Detail, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, autosell_errors.ErrEmptyOrderDetail
	}

	var payload Payload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("decode order detail: %w", err)
	}
	info, err := payload.OrderInfo()
	if err != nil {
		return nil, err
	}

	d := &Detail{
		Status:      parseStatus(payload.Status),
		ItemID:      payload.ItemID.String(),
		BuyerUserID: payload.PeerUserID.String(),
		Data:        trimmed,
	}
	d.StatusText = StatusText(d.Status, payload.UtArgs.OrderMainTitle.String())

	src := SkuSource{}
	if info != nil {
		d.BuyerNickname = info.Row("买家昵称")
		d.OrderTime = info.Row("下单时间")
		d.PayTime = info.Row("付款时间")
		d.ShipTime = info.Row("发货时间")
		d.CompleteTime = info.Row("成交时间")

		price := ""
		if item := info.ItemInfo; item != nil {
			d.ItemTitle, _ = item.String("title")
			d.ItemPicURL, _ = item.String("itemMainPictCdnUrl")
			d.ItemKeys = item.Keys()
			price = item.Scalar("price")
		}
		if price == "" {
			price = info.PriceInfo.Amount.Value.String()
		}
		d.Price = parsePrice(price)

		src = SkuSource{ItemInfo: info.ItemInfo, Rows: info.OrderInfoList, ItemTitle: d.ItemTitle}
	}
	if sku, ok := p.Sku.Extract(src); ok {
		d.SkuText = sku
	}
	return d, nil
}

// Order projects the detail onto the stored order record. Empty fields stay
// null so an upsert keeps what is already known.
func (d *Detail) Order(accountID, orderID string) order.Order {
	return order.Order{
		OrderID:       orderID,
		AccountID:     accountID,
		ItemID:        nullString(d.ItemID),
		ItemTitle:     nullString(d.ItemTitle),
		ItemPicURL:    nullString(d.ItemPicURL),
		Price:         d.Price,
		SkuText:       nullString(d.SkuText),
		BuyerUserID:   nullString(d.BuyerUserID),
		BuyerNickname: nullString(d.BuyerNickname),
		Status:        d.Status,
		StatusText:    d.StatusText,
		OrderTime:     nullString(d.OrderTime),
		PayTime:       nullString(d.PayTime),
		ShipTime:      nullString(d.ShipTime),
		CompleteTime:  nullString(d.CompleteTime),
	}
}

func parsePrice(s string) decimal.NullDecimal {
	s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "¥￥"))
	if s == "" {
		return decimal.NullDecimal{}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
