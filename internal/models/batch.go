package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SymbolFailure records why one symbol in a batch failed
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Err    error  `json:"-"`
}

func (f SymbolFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Symbol, f.Err)
}

func (f SymbolFailure) MarshalJSON() ([]byte, error) {
	reason := ""
	if f.Err != nil {
		reason = f.Err.Error()
	}
	return json.Marshal(struct {
		Symbol string `json:"symbol"`
		Reason string `json:"reason"`
	}{f.Symbol, reason})
}

// BatchResult is the outcome of a per-symbol batch operation
type BatchResult struct {
	OK     []string        `json:"ok"`
	Failed []SymbolFailure `json:"failed"`
}

func (b *BatchResult) Succeed(symbol string) {
	b.OK = append(b.OK, symbol)
}

func (b *BatchResult) Fail(symbol string, err error) {
	b.Failed = append(b.Failed, SymbolFailure{Symbol: symbol, Err: err})
}

// Merge appends other's outcomes to b
func (b *BatchResult) Merge(other BatchResult) {
	b.OK = append(b.OK, other.OK...)
	b.Failed = append(b.Failed, other.Failed...)
}

// Partial reports whether some but not all symbols failed
func (b *BatchResult) Partial() bool {
	return len(b.OK) > 0 && len(b.Failed) > 0
}

// AllFailed reports whether every attempted symbol failed
func (b *BatchResult) AllFailed() bool {
	return len(b.OK) == 0 && len(b.Failed) > 0
}

// FailedSymbols returns the symbols that failed, in the order they were recorded
func (b *BatchResult) FailedSymbols() []string {
	out := make([]string, len(b.Failed))
	for i, f := range b.Failed {
		out[i] = f.Symbol
	}
	return out
}

func (b *BatchResult) String() string {
	parts := make([]string, len(b.Failed))
	for i, f := range b.Failed {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("ok=%d failed=%d [%s]", len(b.OK), len(b.Failed), strings.Join(parts, "; "))
}
