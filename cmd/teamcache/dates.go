package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/teamcache/teamcache/internal/model"
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseJoinDate accepts YYYY-MM-DD or a natural phrase such as "yesterday"
// or "last monday", resolved against base.
func parseJoinDate(text string, base time.Time) (model.Date, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Date{}, nil
	}
	if d, err := model.ParseDate(text); err == nil {
		return d, nil
	}

	r, err := dateParser.Parse(text, base)
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid join date %q: %w", text, err)
	}
	if r == nil {
		return model.Date{}, fmt.Errorf("invalid join date %q: use YYYY-MM-DD or a phrase like \"yesterday\"", text)
	}
	return model.DateOf(r.Time), nil
}
