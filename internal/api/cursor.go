package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"

	"github.com/rickgao/oanda-data/internal/model"
)

// PageDescriptor is one page of a time-window query: an id range and the
// filters it was requested with. On the wire it is an idrange URL.
type PageDescriptor struct {
	From  string
	To    string
	Types []model.TransactionFilter
}

// EncodeURL renders the descriptor as the idrange URL the server would send.
func (p PageDescriptor) EncodeURL(baseURL, accountID string) string {
	query := url.Values{}
	query.Set("from", p.From)
	query.Set("to", p.To)
	if len(p.Types) > 0 {
		query.Set("type", model.JoinFilters(p.Types))
	}
	return strings.TrimRight(baseURL, "/") +
		accountPath(accountID, "/transactions/idrange") +
		"?" + encodeQuery(query)
}

// IDRange returns the bounded id-range query the descriptor stands for.
func (p PageDescriptor) IDRange() IDRange {
	return IDRange{
		From:  optional.Some(p.From),
		To:    optional.Some(p.To),
		Types: p.Types,
	}
}

// ParsePageDescriptor decodes a page URL. from and to must be transaction
// ids; type is optional and must list known filters.
func ParsePageDescriptor(s string) (PageDescriptor, error) {
	u, err := url.Parse(s)
	if err != nil {
		return PageDescriptor{}, &DecodeError{Input: s, Err: err}
	}

	query := u.Query()
	from, to := query.Get("from"), query.Get("to")
	if !isTransactionID(from) {
		return PageDescriptor{}, &DecodeError{Input: s, Err: fmt.Errorf("from %q is not a transaction id", from)}
	}
	if !isTransactionID(to) {
		return PageDescriptor{}, &DecodeError{Input: s, Err: fmt.Errorf("to %q is not a transaction id", to)}
	}

	types, err := model.SplitFilters(query.Get("type"))
	if err != nil {
		return PageDescriptor{}, &DecodeError{Input: s, Err: err}
	}

	return PageDescriptor{From: from, To: to, Types: types}, nil
}

func isTransactionID(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// IsDecodeError reports whether err is a page descriptor decode failure.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
