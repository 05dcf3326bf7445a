package repository

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int64
	Limit int64
}

func NewPage(page, limit int64) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Skip() int64 {
	return (p.Page - 1) * p.Limit
}

// Pages is ceil(total/limit).
func (p Page) Pages(total int64) int64 {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

func (p Page) findOptions(sort bson.D) *options.FindOptions {
	opts := options.Find().SetSkip(p.Skip()).SetLimit(p.Limit)
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	return opts
}

// ParseSort reads "-field other" or "-field,other" into a sort document.
// Only keys present in allowed are used; allowed maps the public name to the
// stored field path. An empty result falls back to fallback.
func ParseSort(raw string, allowed map[string]string, fallback bson.D) bson.D {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	sort := bson.D{}
	for _, field := range fields {
		direction := 1
		if strings.HasPrefix(field, "-") {
			direction = -1
			field = field[1:]
		}
		path, ok := allowed[field]
		if !ok {
			continue
		}
		sort = append(sort, bson.E{Key: path, Value: direction})
	}
	if len(sort) == 0 {
		return fallback
	}
	return sort
}

// prefixPattern builds an anchored case-insensitive regex filter for user input.
func prefixPattern(prefix string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(prefix), "$options": "i"}
}

func containsPattern(text string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
}
