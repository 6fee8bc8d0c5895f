package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// OptionList is the ordered set of option texts chosen by a voter. It is
// persisted as a JSON array in a TEXT column, but scanning stays permissive:
// historical rows imported from CSV backups carry plain comma-separated
// strings (including fullwidth commas), and those must keep loading.
type OptionList []string

// ParseOptionList normalizes a raw stored value into an OptionList.
// Accepted forms: JSON array of strings, or a delimiter-separated plain
// string. Blank entries are dropped.
func ParseOptionList(raw string) OptionList {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OptionList{}
	}

	if strings.HasPrefix(trimmed, "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return OptionList(parsed)
		}
	}

	split := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == '，'
	})
	list := make(OptionList, 0, len(split))
	for _, item := range split {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func (l OptionList) Value() (driver.Value, error) {
	payload, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("option list: serialize: %w", err)
	}
	return string(payload), nil
}

func (l *OptionList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = OptionList{}
	case string:
		*l = ParseOptionList(v)
	case []byte:
		*l = ParseOptionList(string(v))
	default:
		return fmt.Errorf("option list: unsupported column type %T", src)
	}
	return nil
}
