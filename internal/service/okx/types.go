package okx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	drepo "TrendPull/internal/domain/repository"
)

// envelope is the common REST response wrapper.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// APIError describes a failed exchange call. It matches repository.ErrExchange.
type APIError struct {
	Path       string
	HTTPStatus int
	Code       string
	Msg        string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "okx %s", e.Path)
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, " http %d", e.HTTPStatus)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " code %s", e.Code)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{drepo.ErrExchange, e.Err}
	}
	return []error{drepo.ErrExchange}
}

// IsCode reports whether err is an APIError with the given exchange code.
func IsCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

type tickerRow struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	Ts     string `json:"ts"`
}

type balanceRow struct {
	Details []struct {
		Ccy       string `json:"ccy"`
		Eq        string `json:"eq"`
		AvailBal  string `json:"availBal"`
		FrozenBal string `json:"frozenBal"`
	} `json:"details"`
}

type positionRow struct {
	InstID  string `json:"instId"`
	Pos     string `json:"pos"`
	PosSide string `json:"posSide"`
	AvgPx   string `json:"avgPx"`
	Upl     string `json:"upl"`
	Lever   string `json:"lever"`
	MgnMode string `json:"mgnMode"`
	CTime   string `json:"cTime"`
}

type orderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

type orderRow struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	InstID  string `json:"instId"`
	Side    string `json:"side"`
	Sz      string `json:"sz"`
	AvgPx   string `json:"avgPx"`
	State   string `json:"state"`
	CTime   string `json:"cTime"`
}

type closedPositionRow struct {
	InstID      string `json:"instId"`
	Direction   string `json:"direction"`
	RealizedPnl string `json:"realizedPnl"`
	OpenAvgPx   string `json:"openAvgPx"`
	CloseAvgPx  string `json:"closeAvgPx"`
	UTime       string `json:"uTime"`
}

type orderRequest struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Sz      string `json:"sz"`
	ClOrdID string `json:"clOrdId,omitempty"`
}

type leverageRequest struct {
	InstID  string `json:"instId"`
	Lever   string `json:"lever"`
	MgnMode string `json:"mgnMode"`
}

// InstID converts "BTC/USDT:USDT" style symbols to exchange instrument ids.
// Ids already in "BTC-USDT-SWAP" form pass through.
func InstID(symbol string) string {
	if !strings.Contains(symbol, "/") {
		return symbol
	}
	pair, settle, swap := strings.Cut(symbol, ":")
	base, quote, _ := strings.Cut(pair, "/")
	if swap && settle != "" {
		return base + "-" + quote + "-SWAP"
	}
	return base + "-" + quote
}
