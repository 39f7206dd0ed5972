package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Key aliases seen across the CRM's webhook revisions. Earlier schemes kept
// working upstream, so every alias stays probed here.
var (
	eventNameKeys  = []string{"ActivityEventName", "EventName", "ActivityEvent_Name"}
	eventCodeKeys  = []string{"ActivityEvent", "ActivityEventCode", "EventCode"}
	activityIDKeys = []string{"ProspectActivityId", "ActivityId", "Id"}
	leadIDKeys     = []string{"RelatedProspectId", "ProspectId", "LeadId"}
	createdOnKeys  = []string{"CreatedOn", "CreatedAt"}
)

// DecodeDelivery parses a raw webhook body into a Delivery. The envelope is
// loosely typed upstream (numeric codes arrive as numbers or strings, ids as
// strings or numbers), so every scalar is coerced to a trimmed string. A body
// that is not a JSON object is an ErrInvalidArgument.
func DecodeDelivery(body []byte) (Delivery, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Delivery{}, fmt.Errorf("op=domain.DecodeDelivery: %w: %v", ErrInvalidArgument, err)
	}
	d := Delivery{KeyCount: len(raw)}
	d.EventName = firstScalar(raw, eventNameKeys)
	d.EventCode = firstScalar(raw, eventCodeKeys)
	d.ActivityID = firstScalar(raw, activityIDKeys)
	d.LeadID = firstScalar(raw, leadIDKeys)
	d.CreatedOn = firstScalar(raw, createdOnKeys)
	d.Current = decodeContainer(raw, "Current")
	d.Data = decodeContainer(raw, "Data")
	d.Lead = decodeContainer(raw, "Lead")
	return d, nil
}

func decodeContainer(raw map[string]json.RawMessage, key string) map[string]any {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(msg, &m); err != nil {
		// A container of the wrong shape is treated as present-but-empty, so
		// the delivery falls into the empty-payload path instead of erroring.
		return map[string]any{}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func firstScalar(raw map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		msg, ok := raw[k]
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		if s := ScalarString(v); s != "" {
			return s
		}
	}
	return ""
}

// ScalarString coerces a loosely-typed JSON scalar to a trimmed string.
// Whole floats render without a decimal point so numeric event codes compare
// cleanly against configured code strings. Non-scalars yield "".
func ScalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
