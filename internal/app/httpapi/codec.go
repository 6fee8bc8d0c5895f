package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/marcelojr/survey-votes/internal/domain"
)

// flexibleList tolerates backups where selected_options was serialized as a
// delimited string instead of a JSON array.
type flexibleList domain.OptionList

func (l flexibleList) MarshalJSON() ([]byte, error) {
	return json.Marshal(domain.OptionList(l))
}

func (l *flexibleList) UnmarshalJSON(data []byte) error {
	var asArray []string
	if err := json.Unmarshal(data, &asArray); err == nil {
		*l = flexibleList(asArray)
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*l = flexibleList(domain.ParseOptionList(asString))
		return nil
	}

	return fmt.Errorf("selected_options is neither array nor string")
}

// flexibleBool tolerates backups where is_deleted was serialized as 0/1.
type flexibleBool bool

func (b flexibleBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

func (b *flexibleBool) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		*b = flexibleBool(asBool)
		return nil
	}

	var asNumber float64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*b = asNumber != 0
		return nil
	}

	return fmt.Errorf("is_deleted is neither bool nor number")
}
