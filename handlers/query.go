package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"storyforge/models"
	"storyforge/repository"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

var errBadQuery = errors.New("invalid query")

// controlParams are query parameters that are not equality filters.
var controlParams = map[string]bool{"sort": true, "limit": true, "skip": true}

// parseListQuery turns query parameters into a filter and find options.
// Parameters other than sort, limit and skip are string equality filters.
func parseListQuery(q url.Values) (bson.M, repository.FindOptions, error) {
	var opts repository.FindOptions

	opts.Limit = defaultLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return nil, opts, fmt.Errorf("%w: limit must be a positive integer", errBadQuery)
		}
		if n > maxLimit {
			n = maxLimit
		}
		opts.Limit = n
	}

	if s := q.Get("skip"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return nil, opts, fmt.Errorf("%w: skip must be a non-negative integer", errBadQuery)
		}
		opts.Skip = n
	}

	if s := q.Get("sort"); s != "" {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			dir := 1
			if strings.HasPrefix(part, "-") {
				dir = -1
				part = part[1:]
			}
			if err := validFieldName(part); err != nil {
				return nil, opts, err
			}
			opts.Sort = append(opts.Sort, bson.E{Key: part, Value: dir})
		}
	}

	filter, err := parseFilter(q)
	if err != nil {
		return nil, opts, err
	}
	return filter, opts, nil
}

// parseFilter collects the equality filters shared by List and Count. Paging
// parameters are skipped and ids are refused, since query values are strings and
// stored ids are not.
func parseFilter(q url.Values) (bson.M, error) {
	filter := bson.M{}
	for key, values := range q {
		if controlParams[key] || len(values) == 0 {
			continue
		}
		if err := validFilterKey(key); err != nil {
			return nil, err
		}
		filter[key] = values[0]
	}
	return filter, nil
}

func validFilterKey(key string) error {
	if err := validFieldName(key); err != nil {
		return err
	}
	if key == models.FieldID {
		return fmt.Errorf("%w: filter by id is not supported, use /{kind}/{id}", errBadQuery)
	}
	return nil
}

// validFieldName rejects operators and dotted paths so clients can only express
// top-level equality.
func validFieldName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty field name", errBadQuery)
	case strings.HasPrefix(name, "$"):
		return fmt.Errorf("%w: field %q may not start with $", errBadQuery, name)
	case strings.Contains(name, "."):
		return fmt.Errorf("%w: field %q may not contain a dot", errBadQuery, name)
	}
	return nil
}

// validPayload applies validFieldName to every top-level key of a request body.
func validPayload(data bson.M) error {
	for key := range data {
		if err := validFieldName(key); err != nil {
			return err
		}
	}
	return nil
}
