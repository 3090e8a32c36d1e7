// Package tablefile persists tables between stages. Two encodings are
// supported: a row-oriented CSV file and a columnar binary file. Both keep
// the difference between an absent cell (nil) and a provided-empty one
// ("" or an empty list), and both restore cells with their original Go
// types.
package tablefile

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the cell type shared by every non-nil cell of a column.
type Kind string

const (
	KindNull   Kind = "null" // every cell is absent
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
	KindMixed  Kind = "mixed" // cells carry their own type tag
)

func validKind(k Kind) bool {
	switch k {
	case KindNull, KindInt, KindFloat, KindString, KindBool, KindList, KindMixed:
		return true
	}
	return false
}

func kindOfCell(v any) (Kind, error) {
	switch v.(type) {
	case nil:
		return KindNull, nil
	case int64:
		return KindInt, nil
	case float64:
		return KindFloat, nil
	case string:
		return KindString, nil
	case bool:
		return KindBool, nil
	case []string:
		return KindList, nil
	}
	return "", fmt.Errorf("unsupported cell type %T", v)
}

// columnKind folds the kinds of a column's cells.
func columnKind(cells []any) (Kind, error) {
	k := KindNull
	for _, v := range cells {
		ck, err := kindOfCell(v)
		if err != nil {
			return "", err
		}
		switch {
		case ck == KindNull || ck == k:
		case k == KindNull:
			k = ck
		default:
			return KindMixed, nil
		}
	}
	return k, nil
}

// formatValue renders a non-nil cell of kind k as text.
func formatValue(k Kind, v any) (string, error) {
	switch k {
	case KindInt:
		return strconv.FormatInt(v.(int64), 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64), nil
	case KindString:
		return v.(string), nil
	case KindBool:
		return strconv.FormatBool(v.(bool)), nil
	case KindList:
		l := v.([]string)
		if l == nil {
			l = []string{}
		}
		b, err := json.Marshal(l)
		return string(b), err
	case KindMixed:
		ck, err := kindOfCell(v)
		if err != nil {
			return "", err
		}
		s, err := formatValue(ck, v)
		return string(ck) + ":" + s, err
	}
	return "", fmt.Errorf("cannot format kind %q", k)
}

// parseValue is the inverse of formatValue.
func parseValue(k Kind, s string) (any, error) {
	switch k {
	case KindInt:
		return strconv.ParseInt(s, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	case KindString:
		return s, nil
	case KindBool:
		return strconv.ParseBool(s)
	case KindList:
		l := []string{}
		if err := json.Unmarshal([]byte(s), &l); err != nil {
			return nil, err
		}
		if l == nil {
			l = []string{}
		}
		return l, nil
	case KindMixed:
		for _, ck := range []Kind{KindInt, KindFloat, KindString, KindBool, KindList} {
			if p := string(ck) + ":"; len(s) >= len(p) && s[:len(p)] == p {
				return parseValue(ck, s[len(p):])
			}
		}
		return nil, fmt.Errorf("untagged mixed cell %.20q", s)
	}
	return nil, fmt.Errorf("cannot parse kind %q", k)
}
