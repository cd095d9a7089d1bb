package orderdetail

import (
	"regexp"
	"strings"
)

// SkuSource is what the sku heuristics may inspect.
type SkuSource struct {
	ItemInfo  *ItemInfo
	Rows      []InfoRow
	ItemTitle string
}

// SkuExtractor is one heuristic for finding the sku text of an order.
type SkuExtractor interface {
	Extract(src SkuSource) (string, bool)
}

// SkuChain tries extractors in order and stops at the first hit.
type SkuChain []SkuExtractor

func (c SkuChain) Extract(src SkuSource) (string, bool) {
	for _, e := range c {
		if sku, ok := e.Extract(src); ok {
			return sku, true
		}
	}
	return "", false
}

// DefaultSkuChain: explicit item fields, titled summary rows, sku-like item keys,
// then a quantity pattern in the title.
func DefaultSkuChain() SkuChain {
	return SkuChain{
		ExplicitFieldExtractor{Keys: []string{"skuInfo", "skuText", "sku", "skuName"}},
		InfoRowExtractor{Titles: []string{"规格", "商品规格", "SKU"}, Contains: "规格"},
		KeywordFieldExtractor{Keywords: []string{"sku", "spec", "规格"}},
		TitlePatternExtractor{Pattern: titleQuantityPattern},
	}
}

// ExplicitFieldExtractor reads the first non-empty string among Keys on the item.
type ExplicitFieldExtractor struct {
	Keys []string
}

func (e ExplicitFieldExtractor) Extract(src SkuSource) (string, bool) {
	for _, k := range e.Keys {
		v, ok := src.ItemInfo.String(k)
		if !ok || v == "" {
			continue
		}
		sku := NormalizeSku(v)
		return sku, sku != ""
	}
	return "", false
}

// InfoRowExtractor reads the first summary row whose title is one of Titles or
// contains Contains.
type InfoRowExtractor struct {
	Titles   []string
	Contains string
}

func (e InfoRowExtractor) Extract(src SkuSource) (string, bool) {
	for _, r := range src.Rows {
		if !e.matches(r.Title.String()) {
			continue
		}
		sku := NormalizeSku(r.Value.String())
		return sku, sku != ""
	}
	return "", false
}

func (e InfoRowExtractor) matches(title string) bool {
	for _, t := range e.Titles {
		if title == t {
			return true
		}
	}
	return e.Contains != "" && strings.Contains(title, e.Contains)
}

// KeywordFieldExtractor scans item fields in document order for a string value
// whose lowercased key contains one of Keywords.
type KeywordFieldExtractor struct {
	Keywords []string
}

func (e KeywordFieldExtractor) Extract(src SkuSource) (string, bool) {
	for _, k := range src.ItemInfo.Keys() {
		lower := strings.ToLower(k)
		if !containsAny(lower, e.Keywords) {
			continue
		}
		v, ok := src.ItemInfo.String(k)
		if v = strings.TrimSpace(v); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

var titleQuantityPattern = regexp.MustCompile(`(\d+[次个张份枚条支瓶盒包袋套件台部只GBMBmlgkg元]+)`)

// TitlePatternExtractor takes the first capture of Pattern in the item title.
type TitlePatternExtractor struct {
	Pattern *regexp.Regexp
}

func (e TitlePatternExtractor) Extract(src SkuSource) (string, bool) {
	if e.Pattern == nil || src.ItemTitle == "" {
		return "", false
	}
	m := e.Pattern.FindStringSubmatch(src.ItemTitle)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// NormalizeSku drops a "label:" prefix, keeping the text after the last colon.
func NormalizeSku(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
