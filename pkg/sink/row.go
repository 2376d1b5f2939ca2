package sink

import (
	"encoding/json"
	"fmt"

	"github.com/hostscan/hostscan/pkg/record"
	"github.com/hostscan/hostscan/pkg/schema"
)

// rowValues flattens a record into column order. Encoded columns carry JSON
// text; absent optional values are nil (SQL NULL).
func rowValues(rec record.Record, cols []schema.Column) ([]any, error) {
	vals := make([]any, len(cols))
	for i, col := range cols {
		v, err := columnValue(rec, col.Name)
		if err != nil {
			return nil, err
		}
		if col.Encoded && v != nil {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode column %s: %w", col.Name, err)
			}
			v = string(data)
		}
		vals[i] = v
	}
	return vals, nil
}

func columnValue(rec record.Record, name string) (any, error) {
	switch name {
	case "Alexa_rank":
		if rec.AlexaRank == nil {
			return nil, nil
		}
		return *rec.AlexaRank, nil
	case "Alexa_domain":
		return optString(rec.AlexaDomain), nil
	case "DMOZ_title":
		return optString(rec.DMOZTitle), nil
	case "DMOZ_description":
		return optString(rec.DMOZDescription), nil
	case "DMOZ_url":
		return optString(rec.DMOZURL), nil
	case "DMOZ_topic":
		if rec.DMOZTopic == nil {
			return nil, nil
		}
		return rec.DMOZTopic, nil
	case "Host":
		return rec.Host, nil
	case "FinalLocation":
		return rec.FinalLocation, nil
	case "HTTPOk":
		return boolInt(rec.HTTPOk), nil
	case "HTTPSOk":
		return boolInt(rec.HTTPSOk), nil
	case "HTTPSOnly":
		return boolInt(rec.HTTPSOnly), nil
	case "Error":
		return rec.Error, nil
	case record.FieldHTTPResponses:
		if rec.HTTPResponses == nil {
			return nil, nil
		}
		return rec.HTTPResponses, nil
	case record.FieldHTTPSResponses:
		if rec.HTTPSResponses == nil {
			return nil, nil
		}
		return rec.HTTPSResponses, nil
	default:
		return nil, fmt.Errorf("no record value for column %q", name)
	}
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
