package db

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matchFilter reports whether doc satisfies filter using the operator subset the
// application relies on: equality, $exists, $or and $and.
func matchFilter(doc, filter bson.M) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$or", "$and":
			subs, err := subFilters(key, cond)
			if err != nil {
				return false, err
			}
			ok, err := matchAll(doc, subs, key == "$and")
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("unsupported filter operator %s", key)
		}

		val, present := doc[key]
		if ops, ok := operatorDoc(cond); ok {
			for op, arg := range ops {
				switch op {
				case "$exists":
					if present != truthy(arg) {
						return false, nil
					}
				default:
					return false, fmt.Errorf("unsupported filter operator %s on %s", op, key)
				}
			}
			continue
		}

		if key == FieldID {
			got, ok1 := idString(val)
			want, ok2 := idString(cond)
			if !present || !ok1 || !ok2 || got != want {
				return false, nil
			}
			continue
		}

		if cond == nil {
			if present && val != nil {
				return false, nil
			}
			continue
		}
		if !present || !fieldEquals(val, cond) {
			return false, nil
		}
	}
	return true, nil
}

// fieldEquals compares a stored value with an equality condition. A scalar
// condition also matches an array that contains it.
func fieldEquals(val, cond interface{}) bool {
	if valuesEqual(val, cond) {
		return true
	}
	if isArray(cond) {
		return false
	}
	elems, ok := normalize(val).(bson.A)
	if !ok {
		return false
	}
	for _, e := range elems {
		if valuesEqual(e, cond) {
			return true
		}
	}
	return false
}

func isArray(v interface{}) bool {
	_, ok := normalize(v).(bson.A)
	return ok
}

// matchAll evaluates the sub-filters of $and (all) or $or (any).
func matchAll(doc bson.M, subs []bson.M, all bool) (bool, error) {
	for _, sub := range subs {
		ok, err := matchFilter(doc, sub)
		if err != nil {
			return false, err
		}
		if all && !ok {
			return false, nil
		}
		if !all && ok {
			return true, nil
		}
	}
	return all, nil
}

func subFilters(op string, cond interface{}) ([]bson.M, error) {
	var items []interface{}
	switch t := cond.(type) {
	case bson.A:
		items = t
	case []interface{}:
		items = t
	case []bson.M:
		return t, nil
	default:
		return nil, fmt.Errorf("%s expects an array, got %T", op, cond)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s expects a non-empty array", op)
	}
	out := make([]bson.M, 0, len(items))
	for _, item := range items {
		m, ok := asDoc(item)
		if !ok {
			return nil, fmt.Errorf("%s element must be a document, got %T", op, item)
		}
		out = append(out, m)
	}
	return out, nil
}

// operatorDoc returns cond as an operator document when every key starts with '$'.
func operatorDoc(cond interface{}) (bson.M, bool) {
	m, ok := asDoc(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func asDoc(v interface{}) (bson.M, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]interface{}:
		return bson.M(t), true
	}
	return nil, false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if _, ok := b.(ID); ok {
		a, b = b, a
	}
	if sa, ok := a.(ID); ok {
		sb, ok := idString(b)
		return ok && sa.value == sb
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize maps equivalent container types onto one representation for comparison.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return bson.M(t)
	case []interface{}:
		return bson.A(t)
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// applyUpdate applies a $set update in place and reports whether anything changed.
func applyUpdate(doc, update bson.M) (bool, error) {
	if len(update) == 0 {
		return false, fmt.Errorf("update document must not be empty")
	}
	changed := false
	for op, arg := range update {
		if op != "$set" {
			return false, fmt.Errorf("unsupported update operator %s", op)
		}
		fields, ok := asDoc(arg)
		if !ok {
			return false, fmt.Errorf("$set expects a document, got %T", arg)
		}
		for k, v := range fields {
			if k == FieldID {
				return false, fmt.Errorf("field %s is immutable", FieldID)
			}
			if old, ok := doc[k]; !ok || !valuesEqual(old, v) {
				changed = true
			}
			doc[k] = copyValue(v)
		}
	}
	return changed, nil
}

// compareValues orders values the way the document database sorts mixed types:
// missing/null, numbers, strings, ids, booleans, dates.
func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmpOrdered(fa, fb)
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		sa, _ := idString(a)
		sb, _ := idString(b)
		return strings.Compare(sa, sb)
	case 4:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0
		}
		if !ba {
			return -1
		}
		return 1
	case 5:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case int, int32, int64, float32, float64:
		return 1
	case string:
		return 2
	case ID, primitive.ObjectID:
		return 3
	case bool:
		return 4
	case time.Time:
		return 5
	}
	return 6
}

func cmpOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// copyValue deep-copies the container types a document can hold.
func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return copyDoc(t)
	case map[string]interface{}:
		return copyDoc(bson.M(t))
	case bson.A:
		return copySlice(t)
	case []interface{}:
		return copySlice(t)
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
		}
		return out
	}
	return v
}

func copyDoc(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copySlice(in []interface{}) bson.A {
	out := make(bson.A, len(in))
	for i, v := range in {
		out[i] = copyValue(v)
	}
	return out
}
