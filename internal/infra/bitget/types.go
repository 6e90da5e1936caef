package bitget

import (
	"encoding/json"
	"errors"
	"fmt"
)

const codeOK = "00000"

// Provider codes that mean "endpoint or resource does not exist" and are a
// cue to try the next candidate rather than a definitive failure.
const codeNotFound = "40404"

// Position-mode codes meaning "already in the requested mode".
var benignPositionModeCodes = map[string]bool{
	"400171": true,
	"400172": true,
}

var (
	// ErrMissingCredentials means the client was constructed without a full
	// API key set. Surfaced immediately as a failed placement, never
	// silently downgraded to simulation.
	ErrMissingCredentials = errors.New("bitget: missing API credentials")

	// ErrEndpointNotFound means the tried endpoint/symbol-format candidate
	// does not exist on this API revision; the caller should try the next
	// candidate. Any other failure is final.
	ErrEndpointNotFound = errors.New("bitget: endpoint not found")

	// ErrUnavailable means the request never produced a definitive provider
	// answer (transport failure or open circuit). Safe to retry the signal.
	ErrUnavailable = errors.New("bitget: exchange unreachable")
)

// Result is the canonical outcome extracted from the provider's
// heterogeneous response shapes. Success requires both transport status 200
// and provider code "00000"; everything else is a rejection with the
// provider message preserved verbatim.
type Result struct {
	Success bool
	OrderID string
	Code    string
	Message string
	Raw     string
}

// envelope is the common Bitget response wrapper across v1 and v2.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type orderData struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

// positionData tolerates both v1 and v2 field names; numeric values arrive
// as strings.
type positionData struct {
	Symbol           string `json:"symbol"`
	HoldSide         string `json:"holdSide"`
	Total            string `json:"total"`
	Available        string `json:"available"`
	OpenPriceAvg     string `json:"openPriceAvg"`     // v2
	AverageOpenPrice string `json:"averageOpenPrice"` // v1
	MarkPrice        string `json:"markPrice"`
	MarginSize       string `json:"marginSize"` // v2
	Margin           string `json:"margin"`     // v1
	Leverage         string `json:"leverage"`
	LiquidationPrice string `json:"liquidationPrice"`
	UnrealizedPL     string `json:"unrealizedPL"`
}

// tickerData tolerates both v1 ("last") and v2 ("lastPr") price fields.
type tickerData struct {
	Symbol string `json:"symbol"`
	LastPr string `json:"lastPr"`
	Last   string `json:"last"`
}

func (t *tickerData) price() string {
	if t.LastPr != "" {
		return t.LastPr
	}
	return t.Last
}

// RejectedError carries a definitive provider rejection (transport was fine).
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("bitget: rejected (code %s): %s", e.Code, e.Message)
}
