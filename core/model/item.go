package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Item identifies a product slot. Clients may address slots either by name
// ("A1") or by number (12); the representation is echoed back unchanged.
type Item struct {
	value   string
	numeric bool
}

// NamedItem returns a string identifier.
func NamedItem(name string) Item { return Item{value: name} }

// NumberedItem returns an integer identifier.
func NumberedItem(n int64) Item { return Item{value: strconv.FormatInt(n, 10), numeric: true} }

// Numeric reports whether the identifier was given as a number.
func (i Item) Numeric() bool { return i.numeric }

func (i Item) String() string { return i.value }

// MarshalJSON encodes the item as a JSON string or integer.
func (i Item) MarshalJSON() ([]byte, error) {
	if i.numeric {
		return []byte(i.value), nil
	}
	return json.Marshal(i.value)
}

// UnmarshalJSON accepts a JSON string or an integer.
func (i *Item) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = NamedItem(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("item must be a string or an integer, got %s", b)
	}
	*i = NumberedItem(n)
	return nil
}

// JoinItems renders items as a comma separated list.
func JoinItems(items []Item) string {
	parts := make([]string, len(items))
	for idx, it := range items {
		parts[idx] = it.String()
	}
	return strings.Join(parts, ", ")
}

// CloneItems returns a copy of items that is never nil.
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
