package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider categories used as routing keys.
const (
	CategoryDeposit    = "deposit"
	CategoryWithdrawal = "withdrawal"
	CategoryCard       = "card"
)

// RoutingTable maps currency code -> category -> provider name.
type RoutingTable map[string]map[string]string

type routingFile struct {
	Routes map[string]map[string]string `yaml:"routes"`
}

// DefaultRouting is used when nothing overrides a currency.
func DefaultRouting() RoutingTable {
	return RoutingTable{
		"NGN": {CategoryDeposit: "paystack", CategoryWithdrawal: "paystack", CategoryCard: "sudo"},
		"GHS": {CategoryDeposit: "paystack", CategoryWithdrawal: "paystack"},
		"KES": {CategoryDeposit: "flutterwave", CategoryWithdrawal: "flutterwave"},
		"USD": {CategoryDeposit: "flutterwave", CategoryWithdrawal: "flutterwave", CategoryCard: "sudo"},
	}
}

// Lookup returns the provider for currency and category.
func (t RoutingTable) Lookup(currency, category string) (string, bool) {
	byCategory, ok := t[strings.ToUpper(currency)]
	if !ok {
		return "", false
	}
	name, ok := byCategory[category]
	return name, ok && name != ""
}

// Merge returns a copy of t with every entry of other applied on top.
func (t RoutingTable) Merge(other RoutingTable) RoutingTable {
	out := make(RoutingTable, len(t)+len(other))
	for cur, cats := range t {
		out[cur] = make(map[string]string, len(cats))
		for k, v := range cats {
			out[cur][k] = v
		}
	}
	for cur, cats := range other {
		cur = strings.ToUpper(cur)
		if out[cur] == nil {
			out[cur] = make(map[string]string, len(cats))
		}
		for k, v := range cats {
			out[cur][strings.ToLower(k)] = strings.ToLower(v)
		}
	}
	return out
}

// ParseRouting reads PROVIDER_ROUTING. "NGN=paystack" routes both deposit and
// withdrawal; "NGN.card=sudo" targets a single category.
func ParseRouting(raw string) (RoutingTable, error) {
	out := RoutingTable{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, fmt.Errorf("invalid routing entry %q", part)
		}
		key, provider := strings.TrimSpace(kv[0]), strings.ToLower(strings.TrimSpace(kv[1]))
		currency, category := key, ""
		if i := strings.Index(key, "."); i >= 0 {
			currency, category = key[:i], strings.ToLower(key[i+1:])
		}
		currency = strings.ToUpper(currency)
		if out[currency] == nil {
			out[currency] = map[string]string{}
		}
		if category == "" {
			out[currency][CategoryDeposit] = provider
			out[currency][CategoryWithdrawal] = provider
			continue
		}
		out[currency][category] = provider
	}
	return out, nil
}

// LoadRoutingFile reads a YAML routing file:
//
//	routes:
//	  NGN: {deposit: paystack, withdrawal: paystack, card: sudo}
func LoadRoutingFile(path string) (RoutingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}
	return ParseRoutingYAML(data)
}

// ParseRoutingYAML decodes the routing file format.
func ParseRoutingYAML(data []byte) (RoutingTable, error) {
	var f routingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse routing file: %w", err)
	}
	return RoutingTable{}.Merge(f.Routes), nil
}
